package projection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Remote delegates projection to an HTTP oracle:
//
//	POST {base}/project {"method": ..., "data": [[...], ...]}
//	-> {"embedding": [[x, y], ...]}
type Remote struct {
	method           string
	baseURL          string
	httpClient       *http.Client
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
}

type projectRequest struct {
	Method string      `json:"method"`
	Data   [][]float64 `json:"data"`
}

type projectResponse struct {
	Embedding [][]float64 `json:"embedding"`
}

// NewRemote builds a remote projector; zero timeouts and retry settings fall
// back to 60s, 3 attempts, 500ms base and 4s max delay.
func NewRemote(method string, c Config) *Remote {
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 60 * time.Second
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 4 * time.Second
	}
	return &Remote{
		method:           method,
		baseURL:          strings.TrimRight(c.OracleURL, "/"),
		httpClient:       &http.Client{Timeout: c.HTTPTimeout},
		retryMaxAttempts: c.RetryMax,
		retryBaseDelay:   c.BaseDelay,
		retryMaxDelay:    c.MaxDelay,
	}
}

func (r *Remote) Name() string { return r.method }

func (r *Remote) Project(ctx context.Context, matrix [][]float64) ([]Point, error) {
	payload, err := json.Marshal(projectRequest{Method: r.method, Data: matrix})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	endpoint := r.baseURL + "/project"
	backoff := r.retryBaseDelay

	var lastErr error
	for attempt := 1; attempt <= r.retryMaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		pts, retryIn, err := r.do(ctx, endpoint, payload, attempt < r.retryMaxAttempts)
		if err == nil {
			return pts, nil
		}
		lastErr = err
		if retryIn < 0 {
			break
		}
		if retryIn == 0 {
			retryIn = withJitter(backoff)
			if retryIn > r.retryMaxDelay {
				retryIn = r.retryMaxDelay
			}
			backoff *= 2
		}
		if err := sleep(ctx, retryIn); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// do performs one attempt. retryIn < 0 means the error is final; 0 means
// retry after the regular backoff; > 0 is a server-requested delay.
func (r *Remote) do(ctx context.Context, endpoint string, payload []byte, canRetry bool) ([]Point, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, -1, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		if isRetryableNetErr(err) && canRetry {
			return nil, 0, err
		}
		return nil, -1, &UnreachableError{Host: r.baseURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		oerr := decodeOracleError(resp)
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		var ra time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		var out error = oerr
		if resp.StatusCode == http.StatusTooManyRequests {
			out = &RateLimitError{OracleError: oerr, RetryAfter: ra}
		}
		if retryable && canRetry {
			return nil, ra, out
		}
		return nil, -1, out
	}

	var body projectResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, -1, fmt.Errorf("decode response: %w", err)
	}
	pts := make([]Point, len(body.Embedding))
	for i, e := range body.Embedding {
		if len(e) != 2 {
			return nil, -1, fmt.Errorf("oracle returned a %d-dimensional point at row %d", len(e), i)
		}
		pts[i] = Point{X: e[0], Y: e[1]}
	}
	return pts, 0, nil
}

func decodeOracleError(resp *http.Response) *OracleError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	oerr := &OracleError{StatusCode: resp.StatusCode, Raw: raw, RequestID: extractRequestID(resp)}
	src := raw
	if v, ok := raw["error"].(map[string]any); ok {
		src = v
	}
	if msg, ok := src["message"].(string); ok {
		oerr.Message = msg
	} else if msg, ok := src["detail"].(string); ok {
		oerr.Message = msg
	}
	if code, ok := src["code"].(string); ok {
		oerr.Code = code
	}
	return oerr
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// parseRetryAfterSeconds accepts either integer seconds or an HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(v); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

func extractRequestID(resp *http.Response) string {
	for _, k := range []string{"X-Request-Id", "X-Amzn-Requestid", "X-Correlation-Id"} {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// withJitter applies +/- 20% jitter.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	out := time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
	if out <= 0 {
		return d
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
