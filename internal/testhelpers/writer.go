package testhelpers

import (
	"bytes"
	"testing"
)

type testWriter struct {
	t *testing.T
}

// NewWriter returns a writer that logs every line with t.Log so that output is shown only for failing tests.
func NewWriter(t *testing.T) *testWriter { //nolint:revive // unexported return is fine in test helpers
	t.Helper()
	return &testWriter{t: t}
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(bytes.TrimRight(p, "\n")))
	return len(p), nil
}
