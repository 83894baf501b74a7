package carrier

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/Cypherspark/sms-autoresponder/internal/core"
)

// Limited caps the send rate of the wrapped Carrier across all callers.
type Limited struct {
	next    core.Carrier
	limiter *rate.Limiter
}

func NewLimited(next core.Carrier, qps float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	return &Limited{next: next, limiter: rate.NewLimiter(rate.Limit(qps), burst)}
}

// Send waits for a token, then delegates. A wait cut short by ctx is a
// transport failure; the wrapped carrier is not called.
func (l *Limited) Send(ctx context.Context, to, from, body string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", &core.TransportError{Carrier: "limiter", Err: err}
	}
	return l.next.Send(ctx, to, from, body)
}
