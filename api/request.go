package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/honganh1206/stargazer/credential"
)

var (
	ErrNotFound  = errors.New("api: resource not found")
	ErrForbidden = errors.New("api: forbidden")
	ErrConflict  = errors.New("api: conflict")
)

// doRequest sends body as JSON and decodes the response into result. Bearer
// requests fail early with the token source's error when no usable token is stored.
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any, auth bool) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if auth {
		if c.tokens == nil {
			return credential.ErrUnauthenticated
		}
		token, err := c.tokens.BearerToken()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return newHTTPError(resp)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

type HTTPError struct {
	StatusCode int
	Message    string
}

func newHTTPError(resp *http.Response) *HTTPError {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	message := strings.TrimSpace(string(bodyBytes))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(bodyBytes, &payload) == nil && payload.Error != "" {
		message = payload.Error
	}

	return &HTTPError{StatusCode: resp.StatusCode, Message: message}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// Unwrap maps well-known statuses onto sentinel errors so callers can use errors.Is.
func (e *HTTPError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return credential.ErrUnauthenticated
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	}
	return nil
}
