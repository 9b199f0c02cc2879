// Package renderclient calls the external text rendering service that turns
// a learner's text into a downloadable artifact.
package renderclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/hello-pdf-submission/internal/model"
)

// RenderTextPath is appended to the configured api_base.
const RenderTextPath = "/render/text"

// maxResponseBytes caps how much of a reply is read.
const maxResponseBytes = 1 << 20

// ErrUnexpectedStatus is returned when the service answers with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Client posts render requests to a rendering service.
type Client struct {
	http *http.Client
	log  zerolog.Logger
}

// New creates a Client whose requests are bounded by timeout.
func New(timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		http: &http.Client{Timeout: timeout},
		log:  log.With().Str("component", "render_client").Logger(),
	}
}

// Endpoint returns the render URL for apiBase, ignoring trailing slashes.
func Endpoint(apiBase string) string {
	return strings.TrimRight(apiBase, "/") + RenderTextPath
}

// RenderText posts req as JSON to {apiBase}/render/text. A nil error means a
// 2xx JSON object was received; DownloadURL is empty when the reply carried
// no usable string under download_url.
func (c *Client) RenderText(ctx context.Context, apiBase string, req model.RenderTextRequest) (*model.RenderTextResponse, error) {
	endpoint := Endpoint(apiBase)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.log.Warn().Err(err).Str("url", endpoint).Msg("render request failed")
		return nil, err
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("url", endpoint).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("render request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, fmt.Errorf("%w: %s for url: %s", ErrUnexpectedStatus, resp.Status, endpoint)
	}

	var reply struct {
		DownloadURL json.RawMessage `json:"download_url"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := &model.RenderTextResponse{}
	// A null or non-string download_url leaves DownloadURL empty.
	_ = json.Unmarshal(reply.DownloadURL, &out.DownloadURL)
	return out, nil
}
