// Package images paints the portraits and scenes of an investigation and uploads them to the image CDN.
package images

import (
	"bytes"
	"context"
	"encoding/json"
	"github.com/myrjola/sleuth/internal/errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
)

var ErrUpload = errors.NewSentinel("image upload failed")

// Uploader stores an image and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, publicID string, png []byte) (string, error)
}

// CDN uploads with an unsigned upload preset, e.g. https://api.cloudinary.com/v1_1/<cloud>/image/upload.
type CDN struct {
	client    *http.Client
	uploadURL string
	preset    string
}

func NewCDN(client *http.Client, uploadURL string, preset string) *CDN {
	return &CDN{client: client, uploadURL: uploadURL, preset: preset}
}

func (c *CDN) Upload(ctx context.Context, publicID string, png []byte) (string, error) {
	var (
		body bytes.Buffer
		err  error
		part io.Writer
	)
	form := multipart.NewWriter(&body)
	if part, err = form.CreateFormFile("file", publicID+".png"); err != nil {
		return "", errors.Wrap(err, "create form file")
	}
	if _, err = part.Write(png); err != nil {
		return "", errors.Wrap(err, "write form file")
	}
	if err = form.WriteField("upload_preset", c.preset); err != nil {
		return "", errors.Wrap(err, "write upload preset")
	}
	if err = form.WriteField("public_id", publicID); err != nil {
		return "", errors.Wrap(err, "write public id")
	}
	if err = form.Close(); err != nil {
		return "", errors.Wrap(err, "close form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &body)
	if err != nil {
		return "", errors.Wrap(err, "new upload request")
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "upload image", slog.String("public_id", publicID))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		const maxErrorBody = 512
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", errors.Wrap(ErrUpload, "unexpected status",
			slog.Int("status", resp.StatusCode), slog.String("body", string(msg)), slog.String("public_id", publicID))
	}
	var uploaded struct {
		SecureURL string `json:"secure_url"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return "", errors.Wrap(err, "decode upload response")
	}
	if uploaded.SecureURL == "" {
		return "", errors.Wrap(ErrUpload, "missing secure_url", slog.String("public_id", publicID))
	}
	return uploaded.SecureURL, nil
}
