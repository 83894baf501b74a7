package carrier

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Cypherspark/sms-autoresponder/internal/core"
)

var ErrSimulatedFailure = errors.New("simulated_temporary_error")

// Simulated stands in for a real gateway in local runs: it waits Latency
// and then fails about FailureRate of the time.
type Simulated struct {
	Latency     time.Duration
	FailureRate float64 // 0..1
}

func NewSimulated(latency time.Duration, failureRate float64) *Simulated {
	return &Simulated{Latency: latency, FailureRate: failureRate}
}

func (s *Simulated) Send(ctx context.Context, _, _, _ string) (string, error) {
	if s.Latency > 0 {
		t := time.NewTimer(s.Latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", &core.TransportError{Carrier: "simulated", Err: ctx.Err()}
		case <-t.C:
		}
	}
	if s.FailureRate > 0 && rand.Float64() < s.FailureRate {
		return "", &core.TransportError{Carrier: "simulated", Err: ErrSimulatedFailure}
	}
	return "sim-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16], nil
}
