package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"

	"github.com/tutoralloc/allocator/internal/model"
)

const contentType = "application/json"

// CallbackUploader posts every outcome to an HTTP endpoint.
type CallbackUploader struct {
	requestURL *url.URL
	client     *http.Client
}

func NewCallbackUploader(serverURL string) (*CallbackUploader, error) {
	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" || parsedURL.Host == "" {
		return nil, errors.New("please define the callback url with a http(s) scheme and host, e.g. `http://some-url.com/outcomes`")
	}

	return &CallbackUploader{
		requestURL: parsedURL,
		client:     &http.Client{},
	}, nil
}

func (c *CallbackUploader) Upload(ctx context.Context, out model.Outcome) error {
	raw, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("encoding outcome: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.requestURL.String(), bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if err := c.decodeResponse(resp); err != nil {
		return err
	}
	slog.DebugContext(ctx, "outcome posted", slog.String("url", c.requestURL.String()))
	return nil
}

func (c *CallbackUploader) decodeResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil

	case http.StatusBadRequest, http.StatusConflict, http.StatusUnsupportedMediaType:
		ct, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
		if err != nil {
			return fmt.Errorf("failed to parse response content type header: %w", err)
		}
		if ct != "application/problem+json" {
			return fmt.Errorf("expected `application/problem+json` content type, got: %s", ct)
		}
		var problemDetail struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&problemDetail); err != nil {
			return fmt.Errorf("decoding json response failed: %w", err)
		}
		return fmt.Errorf("status code: %d, detail: %s", resp.StatusCode, problemDetail.Detail)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return fmt.Errorf("unknown error, status: %d, body: %s", resp.StatusCode, string(respBody))
}

func (c *CallbackUploader) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
