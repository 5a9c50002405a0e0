package egress

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Backoff is an exponential retry schedule. Attempts counts every try,
// the first one included; the wait before try n+1 is Base<<n capped at Cap.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Cap      time.Duration
}

// DefaultBackoff tries four times over roughly 3.5s.
var DefaultBackoff = Backoff{Attempts: 4, Base: 500 * time.Millisecond, Cap: 10 * time.Second}

func (b Backoff) wait(n int) time.Duration {
	d := b.Base
	for i := 0; i < n && d < b.Cap; i++ {
		d *= 2
	}
	if b.Cap > 0 && d > b.Cap {
		d = b.Cap
	}
	return d
}

// StatusError reports a transient HTTP status (429 or 5xx) that was still
// returned by the last attempt.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return "http status " + http.StatusText(e.StatusCode)
}

// Do calls fn until it succeeds, fails permanently or runs out of attempts.
// Every scheduled retry is logged at debug level under op.
func Do[T any](ctx context.Context, b Backoff, log zerolog.Logger, op string, fn func() (T, error)) (T, error) {
	var zero T
	attempts := max(b.Attempts, 1)

	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := fn()
		switch {
		case err == nil:
			return v, nil
		case !transient(err):
			return zero, err
		case n+1 >= attempts:
			log.Warn().Err(err).Str("op", op).Int("attempts", attempts).Msg("Giving up after transient failures")
			return zero, err
		}

		wait := b.wait(n)
		log.Debug().Err(err).Str("op", op).Int("attempt", n+1).Dur("wait", wait).Msg("Retrying")

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		}
	}
}

// DoHTTP is Do for a request function. Transient statuses are retried and
// surface as *StatusError once attempts run out; any other response is
// returned to the caller, who closes its body.
func DoHTTP(ctx context.Context, b Backoff, log zerolog.Logger, op string, send func() (*http.Response, error)) (*http.Response, error) {
	return Do(ctx, b, log, op, func() (*http.Response, error) {
		resp, err := send()
		if err != nil {
			return nil, err
		}
		switch resp.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			resp.Body.Close()
			return nil, &StatusError{StatusCode: resp.StatusCode}
		}
		return resp, nil
	})
}

// transient reports whether err is worth another attempt: a transient
// status, a failed dial or lookup, or a network timeout.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	var opErr *net.OpError
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.As(err, &statusErr), errors.As(err, &opErr), errors.As(err, &dnsErr):
		return true
	case errors.As(err, &netErr):
		return netErr.Timeout()
	}
	return false
}
