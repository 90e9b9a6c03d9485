package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/csvclean/internal/logging"
)

// Gate admits cleaning requests against tier policies.
type Gate struct {
	counter  Counter
	policies Policies
	now      func() time.Time
}

// NewGate creates a Gate.
func NewGate(counter Counter, policies Policies) *Gate {
	return &Gate{counter: counter, policies: policies, now: time.Now}
}

// Policy returns the policy for a tier.
func (g *Gate) Policy(t Tier) (Policy, error) {
	return g.policies.Lookup(t)
}

// Admit checks the file size and reserves one cleaning slot for identity.
// Both checks run before any cleaning work.
//
// On success the caller must either Commit the ticket after the report is
// produced or Release it if the request is abandoned.
func (g *Gate) Admit(ctx context.Context, identity string, tier Tier, size int64) (*Ticket, error) {
	policy, err := g.policies.Lookup(tier)
	if err != nil {
		return nil, err
	}

	if size > policy.MaxFileBytes() {
		return nil, &FileTooLargeError{Tier: tier, Size: size, Limit: policy.MaxFileBytes()}
	}

	now := g.now()
	period := PeriodStart(now)
	if policy.CleaningsPerPeriod == 0 {
		return nil, &QuotaExceededError{Tier: tier, Limit: 0, PeriodEnd: PeriodEnd(now)}
	}

	count, ok, err := g.counter.TryIncrement(ctx, identity, period, policy.CleaningsPerPeriod)
	if err != nil {
		return nil, fmt.Errorf("reserve quota: %w", err)
	}
	if !ok {
		logging.FromContext(ctx).Info("quota exceeded",
			"tier", tier,
			"limit", policy.CleaningsPerPeriod,
		)
		return nil, &QuotaExceededError{Tier: tier, Limit: policy.CleaningsPerPeriod, PeriodEnd: PeriodEnd(now)}
	}

	return &Ticket{
		counter:  g.counter,
		identity: identity,
		tier:     tier,
		policy:   policy,
		period:   period,
		used:     count,
	}, nil
}

// Usage reports an identity's consumption in the current period.
func (g *Gate) Usage(ctx context.Context, identity string, tier Tier) (Usage, error) {
	policy, err := g.policies.Lookup(tier)
	if err != nil {
		return Usage{}, err
	}
	now := g.now()
	used, err := g.counter.Usage(ctx, identity, PeriodStart(now))
	if err != nil {
		return Usage{}, fmt.Errorf("read usage: %w", err)
	}
	return newUsage(tier, policy, used, PeriodEnd(now)), nil
}

// Usage is an identity's quota position.
type Usage struct {
	Tier         Tier      `json:"tier" yaml:"tier"`
	Used         int       `json:"used" yaml:"used"`
	Limit        int       `json:"limit" yaml:"limit"` // Unlimited for no cap
	Remaining    int       `json:"remaining" yaml:"remaining"`
	MaxFileBytes int64     `json:"max_file_bytes" yaml:"max_file_bytes"`
	AIAllowed    bool      `json:"ai_allowed" yaml:"ai_allowed"`
	ResetsAt     time.Time `json:"resets_at" yaml:"resets_at"`
}

func newUsage(tier Tier, policy Policy, used int, resets time.Time) Usage {
	remaining := Unlimited
	if !policy.Unlimited() {
		remaining = max(policy.CleaningsPerPeriod-used, 0)
	}
	return Usage{
		Tier:         tier,
		Used:         used,
		Limit:        policy.CleaningsPerPeriod,
		Remaining:    remaining,
		MaxFileBytes: policy.MaxFileBytes(),
		AIAllowed:    policy.AIAllowed,
		ResetsAt:     resets,
	}
}

// Ticket is a reserved cleaning slot.
type Ticket struct {
	counter  Counter
	identity string
	tier     Tier
	policy   Policy
	period   time.Time
	used     int

	mu        sync.Mutex
	committed bool
	released  bool
}

// Policy returns the policy the ticket was admitted under.
func (t *Ticket) Policy() Policy { return t.policy }

// Usage returns the identity's position including this ticket's slot.
func (t *Ticket) Usage() Usage {
	return newUsage(t.tier, t.policy, t.used, t.period.AddDate(0, 1, 0))
}

// Commit makes the reserved slot permanent. It is idempotent and has no
// effect after Release.
func (t *Ticket) Commit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.released {
		t.committed = true
	}
}

// Release returns the slot if the ticket was not committed. It is safe to
// defer Release unconditionally.
func (t *Ticket) Release(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.committed || t.released {
		return nil
	}
	t.released = true
	if err := t.counter.Decrement(ctx, t.identity, t.period); err != nil {
		return fmt.Errorf("release quota: %w", err)
	}
	return nil
}

// Purge deletes usage records older than the last retain periods. The
// current period is never purged.
func (g *Gate) Purge(ctx context.Context, retain int) (int64, error) {
	cutoff := PeriodStart(g.now()).AddDate(0, -max(retain, 0), 0)
	purged, err := g.counter.Purge(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge usage: %w", err)
	}
	return purged, nil
}
