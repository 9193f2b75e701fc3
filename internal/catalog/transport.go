package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"smartcart/internal/domain"
)

// maxErrorBody caps how much of a failed response is read for its detail.
const maxErrorBody = 4 << 10

type requestFunc func(ctx context.Context) (*http.Request, error)

// do sends a request, retrying on 429 and 5xx up to maxRetries times, and
// decodes a successful body with dec. Every failure is a *domain.TransportError.
func (c *Client) do(ctx context.Context, op string, build requestFunc, dec decoder) error {
	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return &domain.TransportError{Op: op, Err: err}
			}
		}
		req, err := build(ctx)
		if err != nil {
			return &domain.TransportError{Op: op, Err: err}
		}
		c.log.Debugf("%s %s (attempt %d)", req.Method, req.URL.Redacted(), attempt+1)

		resp, err := c.client.Do(req)
		if err != nil {
			if attempt < c.maxRetries && ctx.Err() == nil {
				if !sleep(ctx, retryDelay(attempt)) {
					return &domain.TransportError{Op: op, URL: req.URL.String(), Err: ctx.Err()}
				}
				continue
			}
			return &domain.TransportError{Op: op, URL: req.URL.String(), Err: err}
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			if attempt < c.maxRetries {
				wait := retryAfter(resp.Header.Get("Retry-After"), attempt)
				_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
				_ = resp.Body.Close()
				c.log.Debugf("%s: %s, retrying in %s", op, resp.Status, wait)
				if !sleep(ctx, wait) {
					return &domain.TransportError{Op: op, URL: req.URL.String(), StatusCode: resp.StatusCode, Err: ctx.Err()}
				}
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			detail := errorDetail(resp.Body)
			_ = resp.Body.Close()
			return &domain.TransportError{Op: op, URL: req.URL.String(), StatusCode: resp.StatusCode, Detail: detail}
		}

		err = dec(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return &domain.TransportError{Op: op, URL: req.URL.String(), StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	}
}

// errorDetail extracts a FastAPI style {"detail": ...} or {"error": ...}
// message, falling back to the raw body text.
func errorDetail(body io.Reader) string {
	payload, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(payload) == 0 {
		return ""
	}
	var out struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if json.Unmarshal(payload, &out) == nil {
		var s string
		switch {
		case len(out.Detail) > 0 && json.Unmarshal(out.Detail, &s) == nil:
			return s
		case len(out.Detail) > 0:
			return string(out.Detail)
		case out.Error != "":
			return out.Error
		}
	}
	return string(bytes.TrimSpace(payload))
}

func retryAfter(header string, attempt int) time.Duration {
	if header != "" {
		if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return retryDelay(attempt)
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second || d <= 0 {
		d = 5 * time.Second
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// multipartForm is a query image plus optional text fields. It is encoded
// afresh for every attempt.
type multipartForm struct {
	fileField string
	image     domain.Image
	fields    map[string]string
}

func (f multipartForm) encode() (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	name := f.image.Name
	if name == "" {
		name = "query"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.fileField, name))
	ct := f.image.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(f.image.Data); err != nil {
		return nil, "", err
	}
	for _, key := range []string{"text", "w_image", "w_text"} {
		if v, ok := f.fields[key]; ok {
			if err := w.WriteField(key, v); err != nil {
				return nil, "", err
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func (f multipartForm) request(endpoint string) requestFunc {
	return func(ctx context.Context) (*http.Request, error) {
		if len(f.image.Data) == 0 {
			return nil, errors.New("image payload is empty")
		}
		body, contentType, err := f.encode()
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	}
}
