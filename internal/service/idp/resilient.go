package idp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/dzerik/oauth-service/internal/model"
	"github.com/dzerik/oauth-service/pkg/logger"
)

// retryBackoff is the delay between retries of transient provider
// failures.
const retryBackoff = 500 * time.Millisecond

// resilientProvider decorates a Provider with a per-call timeout, bounded
// retries for transient network failures, and a circuit breaker. Protocol
// rejections (invalid_grant, invalid_client) are never retried.
type resilientProvider struct {
	inner      Provider
	timeout    time.Duration
	maxRetries int
	breaker    *gobreaker.CircuitBreaker[any]
	log        *zap.Logger
}

// NewResilientProvider wraps a provider with timeout, retry, and circuit
// breaker behavior. breaker may be nil to disable circuit breaking.
func NewResilientProvider(inner Provider, timeout time.Duration, maxRetries int, breaker *gobreaker.CircuitBreaker[any]) Provider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &resilientProvider{
		inner:      inner,
		timeout:    timeout,
		maxRetries: maxRetries,
		breaker:    breaker,
		log:        logger.Named("idp").With(zap.String("provider", inner.Name())),
	}
}

func (p *resilientProvider) Name() string {
	return p.inner.Name()
}

func (p *resilientProvider) AuthURL(opts AuthURLOptions) string {
	return p.inner.AuthURL(opts)
}

func (p *resilientProvider) Exchange(ctx context.Context, code string) (*model.TokenSet, error) {
	return callWithRetry(ctx, p, "exchange", func(ctx context.Context) (*model.TokenSet, error) {
		return p.inner.Exchange(ctx, code)
	})
}

func (p *resilientProvider) UserInfo(ctx context.Context, accessToken string) (*model.UserInfo, error) {
	return callWithRetry(ctx, p, "userinfo", func(ctx context.Context) (*model.UserInfo, error) {
		return p.inner.UserInfo(ctx, accessToken)
	})
}

func (p *resilientProvider) Refresh(ctx context.Context, refreshToken string) (*model.TokenSet, error) {
	return callWithRetry(ctx, p, "refresh", func(ctx context.Context) (*model.TokenSet, error) {
		return p.inner.Refresh(ctx, refreshToken)
	})
}

func callWithRetry[T any](ctx context.Context, p *resilientProvider, op string, call func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for try := 0; try <= p.maxRetries; try++ {
		if try > 0 {
			p.log.Warn("retrying provider call",
				zap.String("operation", op),
				zap.Int("attempt", try),
			)
			select {
			case <-ctx.Done():
				return zero, fmt.Errorf("%w: %s", ErrProviderTimeout, op)
			case <-time.After(retryBackoff):
			}
		}

		result, err := attempt(ctx, p, call)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isTransient(err) {
			return zero, err
		}
	}
	return zero, lastErr
}

func attempt[T any](ctx context.Context, p *resilientProvider, call func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if p.breaker == nil {
		return call(callCtx)
	}

	result, err := p.breaker.Execute(func() (any, error) {
		return call(callCtx)
	})
	if err != nil {
		return zero, err
	}
	return result.(T), nil
}

// classifyError maps a raw provider error to the package taxonomy.
// Protocol rejections carry only the OAuth error code; response bodies
// are never propagated.
func classifyError(base error, err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %v", ErrProviderTimeout, base)
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		code := retrieveErr.ErrorCode
		if code == "" && retrieveErr.Response != nil {
			code = fmt.Sprintf("status %d", retrieveErr.Response.StatusCode)
		}
		return fmt.Errorf("%w: %s", base, code)
	}
	return fmt.Errorf("%w: %v", base, err)
}

// isTransient reports whether an error may be retried: only timeouts and
// temporary network failures qualify.
func isTransient(err error) bool {
	if isTimeout(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isTimeout(err error) bool {
	if errors.Is(err, ErrProviderTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
