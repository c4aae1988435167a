package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

type presignRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

type PresignedUpload struct {
	UploadURL string    `json:"uploadUrl"`
	FileURL   string    `json:"fileUrl"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UploadImage reserves a pre-signed slot and PUTs r straight to it. The
// storage URL is self-authorizing, so the bearer token is not sent there.
// It returns the public URL of the stored file.
func (c *Client) UploadImage(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	var slot PresignedUpload
	if err := c.doRequest(ctx, http.MethodPost, "/api/uploads/presign",
		presignRequest{FileName: name, ContentType: contentType}, &slot, true); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, slot.UploadURL, r)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", newHTTPError(resp)
	}
	io.Copy(io.Discard, resp.Body)

	return slot.FileURL, nil
}
