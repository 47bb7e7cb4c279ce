package completion

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds completion calls when no timeout is configured.
const DefaultTimeout = 120 * time.Second

type timeoutService struct {
	next    Service
	timeout time.Duration
}

// WithTimeout bounds every call to svc by d (DefaultTimeout when d <= 0).
// A call that runs out of time fails with [ErrTimeout]; cancellation by the
// caller is returned unchanged.
func WithTimeout(svc Service, d time.Duration) Service {
	if d <= 0 {
		d = DefaultTimeout
	}
	return &timeoutService{next: svc, timeout: d}
}

func (s *timeoutService) Complete(ctx context.Context, req Request) (*Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.next.Complete(callCtx, req)
	if err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %v", ErrTimeout, s.timeout, err)
		}
		return nil, err
	}
	return resp, nil
}
