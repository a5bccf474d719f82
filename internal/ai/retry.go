package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// retryPolicy bounds how a runtime retries transient failures.
type retryPolicy struct {
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
}

// delayedError carries a provider error together with the server's
// requested wait so backoff honours Retry-After without losing the cause.
type delayedError struct {
	err   error
	after *backoff.RetryAfterError
}

func (e *delayedError) Error() string   { return e.err.Error() }
func (e *delayedError) Unwrap() []error { return []error{e.err, e.after} }

// send performs a request built by newReq until it succeeds, fails
// permanently or runs out of attempts. Network timeouts, 429 and 5xx are
// retried. onError turns a non-2xx response into an error and onOK consumes
// a 2xx body.
func (p retryPolicy) send(ctx context.Context, hc *http.Client,
	newReq func(context.Context) (*http.Request, error),
	onError func(*http.Response) error,
	onOK func(*http.Response) error,
) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.baseDelay
	bo.MaxInterval = p.maxDelay
	bo.RandomizationFactor = 0.2

	attempts := p.attempts
	if attempts <= 0 {
		attempts = 1
	}
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		req, err := newReq(ctx)
		if err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		resp, err := hc.Do(req)
		if err != nil {
			if isRetryableNetErr(err) {
				return struct{}{}, err
			}
			return struct{}{}, backoff.Permanent(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if err := onOK(resp); err != nil {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, nil
		}
		apiErr := onError(resp)
		if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
			return struct{}{}, backoff.Permanent(apiErr)
		}
		if d := retryAfter(resp); d > 0 {
			return struct{}{}, &delayedError{err: apiErr, after: &backoff.RetryAfterError{Duration: d}}
		}
		return struct{}{}, apiErr
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(attempts)))
	return err
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
