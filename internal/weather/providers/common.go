// Package providers implements the source clients for the two weather data
// providers: OpenWeather (primary) and INMET (backup).
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/agroclima/weather-collector/internal/weather"
)

// Option adjusts client construction, mainly for tests.
type Option func(*options)

type options struct {
	baseURL string
}

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(u string) Option {
	return func(o *options) {
		if u != "" {
			o.baseURL = u
		}
	}
}

func applyOptions(baseURL string, opts []Option) options {
	o := options{baseURL: baseURL}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newCircuit(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
	})
}

// doRequest executes a single request through the client's circuit breaker
// and maps transport and status failures onto FetchError kinds. Retry and
// failover policy live in the orchestrator, not here.
func doRequest(ctx context.Context, client *http.Client, cb *gobreaker.CircuitBreaker, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := client.Do(req)
		if execErr != nil {
			return nil, classifyTransport(execErr)
		}
		if fe := classifyStatus(resp.StatusCode); fe != nil {
			resp.Body.Close()
			return nil, fe
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, weather.WrapFetchError(weather.KindUnavailable, err, "circuit breaker open")
		}
		return nil, weather.AsFetchError(err)
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return nil, weather.NewFetchError(weather.KindUnavailable, "unexpected result type from circuit breaker")
	}
	return resp, nil
}

func classifyTransport(err error) *weather.FetchError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return weather.WrapFetchError(weather.KindTimeout, err, "request timed out")
	}
	return weather.WrapFetchError(weather.KindUnavailable, err, "request failed")
}

func classifyStatus(code int) *weather.FetchError {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return weather.NewFetchError(weather.KindRateLimited, "provider rate limit hit (status %d)", code)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return weather.NewFetchError(weather.KindAuthInvalid, "credentials rejected (status %d)", code)
	case code == http.StatusNotFound:
		return weather.NewFetchError(weather.KindNotFound, "resource not found (status %d)", code)
	default:
		return weather.NewFetchError(weather.KindUnavailable, "unexpected status %d", code)
	}
}

// decodeJSON decodes a response body, surfacing malformed payloads as a
// typed failure.
func decodeJSON(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return weather.WrapFetchError(weather.KindMalformed, err, "malformed provider payload")
	}
	return nil
}
