package notifications

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type throttledSender struct {
	next    Sender
	limiter *rate.Limiter
}

// Throttle limits s to perSecond sends with the given burst. A zero rate
// returns s unchanged.
func Throttle(s Sender, perSecond float64, burst int) Sender {
	if perSecond <= 0 {
		return s
	}
	if burst < 1 {
		burst = 1
	}
	return &throttledSender{
		next:    s,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (s *throttledSender) Transport() string {
	return s.next.Transport()
}

func (s *throttledSender) Send(ctx context.Context, msg Message) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return s.next.Send(ctx, msg)
}
