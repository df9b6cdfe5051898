package service

import (
	"context"
	"time"

	domainauth "github.com/synergyaccounting/synergy-web/internal/domain/auth"
	"github.com/synergyaccounting/synergy-web/internal/observability/metrics"
)

// DefaultGuardWait bounds how long Resolve waits for bootstrap.
const DefaultGuardWait = 2 * time.Second

// ScreenGuard gates a screen on a role requirement.
type ScreenGuard struct {
	requirement domainauth.Requirement
	wait        time.Duration
	metrics     *metrics.Recorder
}

// GuardOption configures a ScreenGuard.
type GuardOption func(*ScreenGuard)

// WithGuardWait sets the Resolve wait budget. Zero makes Resolve equivalent to Decide.
func WithGuardWait(d time.Duration) GuardOption {
	return func(g *ScreenGuard) {
		if d < 0 {
			d = 0
		}
		g.wait = d
	}
}

// WithGuardMetrics records decisions on m.
func WithGuardMetrics(m *metrics.Recorder) GuardOption {
	return func(g *ScreenGuard) { g.metrics = m }
}

// NewScreenGuard builds a guard for requirement.
func NewScreenGuard(requirement domainauth.Requirement, opts ...GuardOption) *ScreenGuard {
	g := &ScreenGuard{requirement: requirement, wait: DefaultGuardWait}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Requirement returns the guarded requirement.
func (g *ScreenGuard) Requirement() domainauth.Requirement { return g.requirement }

// Decide evaluates the guard without blocking.
//
// With no principal and bootstrap unfinished it starts bootstrap and returns
// Pending. Otherwise the requirement decides. An optimistic principal is
// judged as-is while bootstrap reconciles it in the background.
func (g *ScreenGuard) Decide(w *Workspace) domainauth.Decision {
	d := g.decide(w)
	g.metrics.GuardDecision(g.requirement.String(), d.String())
	return d
}

func (g *ScreenGuard) decide(w *Workspace) domainauth.Decision {
	p := w.Principal()
	if !w.Bootstrapped() {
		w.EnsureBootstrap()
		if p == nil {
			return domainauth.DecisionPending
		}
	}
	if g.requirement.Allows(p) {
		return domainauth.DecisionAllowed
	}
	return domainauth.DecisionDenied
}

// Resolve is Decide that waits up to the guard budget for a pending
// bootstrap to finish. It still returns Pending if the budget runs out.
func (g *ScreenGuard) Resolve(ctx context.Context, w *Workspace) domainauth.Decision {
	d := g.decide(w)
	if d == domainauth.DecisionPending && g.wait > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, g.wait)
		_ = w.WaitBootstrapped(waitCtx)
		cancel()
		d = g.decide(w)
	}
	g.metrics.GuardDecision(g.requirement.String(), d.String())
	return d
}
