package selections

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// ErrRemoteUnavailable is returned by the simulated remote on an injected failure
var ErrRemoteUnavailable = errors.New("remote service unavailable")

// Remote confirms a mutation with the backing reservation system
type Remote interface {
	Call(ctx context.Context, op AsyncOperation) error
}

// SimulatedRemote stands in for the reservation API. It waits Latency and
// fails with probability FailureRate.
type SimulatedRemote struct {
	Latency     time.Duration
	FailureRate float64
}

func NewSimulatedRemote(latency time.Duration, failureRate float64) *SimulatedRemote {
	return &SimulatedRemote{Latency: latency, FailureRate: failureRate}
}

func (r *SimulatedRemote) Call(ctx context.Context, op AsyncOperation) error {
	if r.Latency > 0 {
		timer := time.NewTimer(r.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if r.FailureRate > 0 && rand.Float64() < r.FailureRate {
		return ErrRemoteUnavailable
	}
	return nil
}

// RemoteFunc adapts a function to Remote
type RemoteFunc func(ctx context.Context, op AsyncOperation) error

func (f RemoteFunc) Call(ctx context.Context, op AsyncOperation) error {
	return f(ctx, op)
}
