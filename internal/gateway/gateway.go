// Package gateway is the payment verification boundary. The service only
// needs a pass/fail decision for an authority; no real provider is wired.
package gateway

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kasrafouladi/Elmosyar/internal/metrics"
)

type Decision struct {
	Approved  bool
	Reference string
}

type Gateway interface {
	Verify(ctx context.Context, authority string, amount int64) (Decision, error)
}

// Static always returns the same decision.
type Static struct{ Approve bool }

func (g Static) Verify(ctx context.Context, authority string, _ int64) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	return Decision{Approved: g.Approve, Reference: authority}, nil
}

// Random approves with probability SuccessRate, standing in for a sandbox provider.
type Random struct {
	SuccessRate float64

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandom(successRate float64, seed uint64) *Random {
	return &Random{SuccessRate: successRate, rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *Random) Verify(ctx context.Context, authority string, _ int64) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	g.mu.Lock()
	ok := g.rnd.Float64() < g.SuccessRate
	g.mu.Unlock()
	return Decision{Approved: ok, Reference: authority}, nil
}

// Instrumented records the latency and outcome of every call on Next.
type Instrumented struct{ Next Gateway }

func (g Instrumented) Verify(ctx context.Context, authority string, amount int64) (Decision, error) {
	start := time.Now()
	d, err := g.Next.Verify(ctx, authority, amount)
	outcome := "declined"
	switch {
	case err != nil:
		outcome = "error"
	case d.Approved:
		outcome = "approved"
	}
	metrics.RecordGateway(outcome, time.Since(start).Seconds())
	return d, err
}

// New picks a gateway by mode: "approve", "decline", or anything else for
// Random. The result is already Instrumented.
func New(mode string, successRate float64) Gateway {
	var g Gateway
	switch mode {
	case "approve":
		g = Static{Approve: true}
	case "decline":
		g = Static{Approve: false}
	default:
		g = NewRandom(successRate, uint64(time.Now().UnixNano()))
	}
	return Instrumented{Next: g}
}
