package mailer

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedSender wraps a Sender with a token-bucket limiter, guarding
// the relay against burst ticks admitting many documents at once — a
// real-world concern the original design left to the relay itself.
type RateLimitedSender struct {
	next    Sender
	limiter *rate.Limiter
}

// NewRateLimitedSender allows perMinute sends per minute, bursting up
// to perMinute in one go so a quiet tick doesn't throttle the next busy one.
func NewRateLimitedSender(next Sender, perMinute int) *RateLimitedSender {
	if perMinute <= 0 {
		perMinute = 60
	}
	limit := rate.Limit(float64(perMinute) / 60.0)
	return &RateLimitedSender{next: next, limiter: rate.NewLimiter(limit, perMinute)}
}

func (s *RateLimitedSender) Send(ctx context.Context, to []string, subject, html string) (bool, string) {
	if err := s.limiter.Wait(ctx); err != nil {
		return false, err.Error()
	}
	return s.next.Send(ctx, to, subject, html)
}
