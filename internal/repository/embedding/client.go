// Package embedding is the HTTP client for the hosted text embedding model.
package embedding

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hybridReco/domain"
	"hybridReco/pkg/config"
	"hybridReco/pkg/logger"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const (
	breakerName     = "embedding-api"
	maxResponseSize = 8 << 20
)

type request struct {
	Inputs  string         `json:"inputs"`
	Options requestOptions `json:"options"`
}

type requestOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

// Client posts text to {base}/models/{model} with a bearer token. Calls are rate limited
// and guarded by a circuit breaker; an open breaker surfaces as *domain.TransportError.
type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker[[]float64]
}

func NewClient(cfg config.EmbeddingConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
		burst = int(cfg.RequestsPerSec)
		if burst < 1 {
			burst = 1
		}
	}

	cb := gobreaker.NewCircuitBreaker[[]float64](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		// rejected input is not a sign of an unhealthy provider
		IsSuccessful: func(err error) bool {
			return err == nil || domain.IsProviderError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Embedding circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			BreakerState.Set(stateValue(to))
		},
	})

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/models/" + strings.TrimLeft(cfg.Model, "/"),
		token:      cfg.APIToken,
		limiter:    rate.NewLimiter(limit, burst),
		cb:         cb,
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.TransportError{Op: "embed", Err: err}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		EmbeddingRequestsTotal.WithLabelValues("rate_limited").Inc()
		return nil, &domain.TransportError{Op: "rate limit", Err: err}
	}

	vec, err := c.cb.Execute(func() ([]float64, error) {
		return c.embed(ctx, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			EmbeddingRequestsTotal.WithLabelValues("rejected").Inc()
			return nil, &domain.TransportError{Op: "circuit breaker", Err: err}
		}
		if domain.IsProviderError(err) {
			EmbeddingRequestsTotal.WithLabelValues("provider_error").Inc()
		} else {
			EmbeddingRequestsTotal.WithLabelValues("transport_error").Inc()
		}
		return nil, err
	}

	EmbeddingRequestsTotal.WithLabelValues("success").Inc()
	return vec, nil
}

func (c *Client) embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(request{Inputs: text, Options: requestOptions{WaitForModel: true}})
	if err != nil {
		return nil, &domain.ProviderError{Op: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.ProviderError{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: "post", Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &domain.TransportError{Op: "read response", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &domain.TransportError{
			Op:  "post",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, snippet(payload)),
		}
	case resp.StatusCode >= 400:
		return nil, &domain.ProviderError{
			Op:         "post",
			StatusCode: resp.StatusCode,
			Err:        errors.New(snippet(payload)),
		}
	}

	vec, err := ParseEmbedding(payload)
	if err != nil {
		return nil, &domain.ProviderError{Op: "decode response", StatusCode: resp.StatusCode, Err: err}
	}
	return vec, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// vectorFields are tried in order when the response is an object.
var vectorFields = []string{"embedding", "embeddings", "data", "vector"}

// ParseEmbedding accepts [f...], [[f...]], [{"data":[f...]}] or an object holding one
// of those under a known field.
func ParseEmbedding(payload []byte) ([]float64, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, errors.New("empty response")
	}

	switch trimmed[0] {
	case '[':
		var flat []float64
		if err := json.Unmarshal(trimmed, &flat); err == nil {
			return nonEmpty(flat)
		}

		var nested [][]float64
		if err := json.Unmarshal(trimmed, &nested); err == nil {
			if len(nested) == 0 {
				return nil, errors.New("empty embedding list")
			}
			return nonEmpty(nested[0])
		}

		var wrapped []struct {
			Data []float64 `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err == nil && len(wrapped) > 0 {
			return nonEmpty(wrapped[0].Data)
		}

		return nil, errors.New("unrecognized array shape")

	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("decode object: %w", err)
		}
		for _, field := range vectorFields {
			if raw, ok := obj[field]; ok {
				return ParseEmbedding(raw)
			}
		}
		if raw, ok := obj["error"]; ok {
			return nil, fmt.Errorf("provider error: %s", snippet(raw))
		}
		return nil, errors.New("no embedding field in response")
	}

	return nil, errors.New("unrecognized response")
}

func nonEmpty(v []float64) ([]float64, error) {
	if len(v) == 0 {
		return nil, errors.New("empty embedding")
	}
	return v, nil
}
