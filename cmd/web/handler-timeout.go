package main

import (
	"net/http"
	"time"
)

const timeoutBody = `{"error":"the detective's informants are taking too long, try again"}`

// timeoutHandler responds with a 503 Service Unavailable error when the handler does not meet the deadline.
func timeoutHandler(h http.Handler, defaultTimeout time.Duration) http.Handler {
	// We want the timeout to be a little shorter than the server's write timeout so that the
	// timeout handler has a chance to respond before the server closes the connection.
	return http.TimeoutHandler(h, defaultTimeout, timeoutBody)
}
