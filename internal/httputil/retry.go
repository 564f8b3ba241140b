// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages.
package httputil

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"
)

// Policy is the single retry policy used by every network call in the
// pipeline. Downloads use a bounded attempt count; pagination uses an
// unbounded policy (MaxAttempts 0) because the metadata source is treated
// as eventually available.
type Policy struct {
	// MaxAttempts caps total attempts. 0 means retry until the context
	// is cancelled.
	MaxAttempts int

	// BaseDelay is the first backoff; it doubles each attempt.
	BaseDelay time.Duration

	// MaxDelay caps the doubling backoff. 0 means uncapped.
	MaxDelay time.Duration

	// RetryableStatus reports whether a response status warrants a retry.
	// Nil falls back to retrying everything outside 2xx.
	RetryableStatus func(code int) bool
}

// DefaultDownloadPolicy bounds artifact downloads: 3 attempts with
// 1s/2s backoff between them.
func DefaultDownloadPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// DefaultPagePolicy retries pagination requests indefinitely with a flat
// 5s delay, bounded only by the run's context.
func DefaultPagePolicy() Policy {
	return Policy{MaxAttempts: 0, BaseDelay: 5 * time.Second, MaxDelay: 5 * time.Second}
}

func (p Policy) retryable(code int) bool {
	if p.RetryableStatus != nil {
		return p.RetryableStatus(code)
	}
	return code < 200 || code >= 300
}

func (p Policy) backoff(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Do executes req, retrying transport errors and retryable statuses per
// the policy. On success the response body is open and owned by the
// caller. After exhausting attempts the last response (or error) is
// returned so the caller can inspect it. Bodies of retried responses are
// closed here. Requests must have no body (the pipeline only issues GETs)
// so cloning is always safe.
func (p Policy) Do(ctx context.Context, client *http.Client, req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.Clone(ctx))

		if err == nil && !p.retryable(resp.StatusCode) {
			return resp, nil
		}

		last := p.MaxAttempts > 0 && attempt >= p.MaxAttempts-1
		if last {
			return resp, err
		}

		if resp != nil {
			resp.Body.Close()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.backoff(attempt)):
		}
	}
}

// NewClient builds the HTTP client shared by a stage. insecure disables
// TLS verification; callers must log that decision explicitly.
func NewClient(timeout time.Duration, insecure bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}
