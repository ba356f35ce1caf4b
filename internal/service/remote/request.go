package remote

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/resume-tuner/internal/logger"
	"github.com/spigell/resume-tuner/internal/service"
	"github.com/spigell/resume-tuner/internal/utils"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
	maxLogLength    = 200
)

// post sends body to the operation endpoint and returns the response body and
// its media type. Any non-2xx status is a failure.
func (c *Client) post(ctx context.Context, op string, body io.Reader, ct string) ([]byte, string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, "", service.Failure(op, fmt.Errorf("wait for rate limiter: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/%s", c.APIURL, op), body)
	if err != nil {
		return nil, "", service.Failure(op, err)
	}

	requestID := uuid.NewString()
	req = c.setHeaders(req, requestID)
	req.Header.Set("Content-Type", ct)

	resp, err := c.request(req, requestID)
	if err != nil {
		return nil, "", service.Failure(op, err)
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return nil, "", service.Failure(op, fmt.Errorf("read response: %w", err))
	}

	c.logger.Debug("got response from service",
		zap.String("op", op),
		logger.RequestID(requestID),
		zap.Int("status", resp.StatusCode),
		zap.Int("response_length", len(data)),
		zap.String("response_preview", utils.PreviewPayload(data, maxLogLength)),
	)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, "", statusFailure(op, resp.Status, data)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))

	return data, mediaType, nil
}

func (c *Client) request(req *http.Request, requestID string) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("url", req.URL.String()), logger.RequestID(requestID))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) setHeaders(req *http.Request, requestID string) *http.Request {
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)
	req.Header.Set("X-Request-ID", requestID)

	return req
}

func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}

	return io.ReadAll(reader)
}

// statusFailure prefers the service-reported {"error": ...} message over the status line.
func statusFailure(op, status string, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return service.Failuref(op, "%s", payload.Error)
	}

	return service.Failuref(op, "bad status: %s", status)
}
