package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/penshort/linkpulse/internal/apperr"
	"github.com/penshort/linkpulse/internal/model"
)

const (
	providerName = "geolocation"

	// maxResponseBytes caps the provider body read.
	maxResponseBytes = 64 << 10

	dialTimeout         = 2 * time.Second
	tlsHandshakeTimeout = 2 * time.Second
)

var errNoEndpoint = errors.New("no geolocation endpoint configured")

// NewHTTPClient creates an HTTP client for provider calls.
// It does not follow redirects.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   dialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   tlsHandshakeTimeout,
			ResponseHeaderTimeout: timeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// providerResponse is the subset of the provider payload that is read.
type providerResponse struct {
	Location *struct {
		CountryName string `json:"country_name"`
		City        string `json:"city"`
	} `json:"location"`
}

// lookup calls the provider once. An empty ip asks the provider to locate
// the caller.
func (r *Resolver) lookup(ctx context.Context, ip string) (model.Location, error) {
	if r.cfg.Endpoint == "" {
		return model.Location{}, apperr.Upstream(providerName, errNoEndpoint)
	}

	target, err := providerURL(r.cfg.Endpoint, ip)
	if err != nil {
		return model.Location{}, apperr.Upstream(providerName, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return model.Location{}, apperr.Upstream(providerName, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return model.Location{}, apperr.Upstream(providerName, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.Location{}, apperr.Upstream(providerName, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var body providerResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return model.Location{}, apperr.Upstream(providerName, fmt.Errorf("decode response: %w", err))
	}

	if body.Location == nil {
		return model.NewLocation("", ""), nil
	}
	return model.NewLocation(body.Location.CountryName, body.Location.City), nil
}

// providerURL adds the ip query parameter to endpoint, keeping any query the
// endpoint already has.
func providerURL(endpoint, ip string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	if ip == "" {
		return u.String(), nil
	}
	q := u.Query()
	q.Set("ip", ip)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
