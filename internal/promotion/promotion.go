// Package promotion advances eligible employees one tier at a time.
package promotion

import (
	"context"
	"fmt"
	"time"

	"github.com/tphakala/shiftledger/internal/conf"
	"github.com/tphakala/shiftledger/internal/datastore"
	"github.com/tphakala/shiftledger/internal/errors"
	"github.com/tphakala/shiftledger/internal/logger"
	"github.com/tphakala/shiftledger/internal/period"
)

// Store is the persistence the evaluator needs.
type Store interface {
	ListEmployees(ctx context.Context, activeOnly bool) ([]datastore.Employee, error)
	ApplyPromotion(ctx context.Context, p datastore.Promotion) error
}

// Policy holds the promotion rules.
type Policy struct {
	TenureDays      int
	OnTimeThreshold float64
	TierMax         int
	Roles           map[int]string
	Reason          string
}

// PolicyFrom builds a Policy from settings.
func PolicyFrom(p *conf.PolicySettings) Policy {
	return Policy{
		TenureDays:      p.TenureDays,
		OnTimeThreshold: p.OnTimeThreshold,
		TierMax:         p.TierMax,
		Roles:           p.RoleMap(),
		Reason:          p.Reason,
	}
}

// Evaluator applies Policy to the stored roster.
type Evaluator struct {
	store  Store
	policy Policy
	loc    *time.Location
	now    func() time.Time
	log    logger.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithClock sets the evaluation time source.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// NewEvaluator creates an evaluator; hire dates are read in loc.
func NewEvaluator(store Store, policy Policy, loc *time.Location, log logger.Logger, opts ...Option) *Evaluator {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Global().Module("promotion")
	}
	e := &Evaluator{store: store, policy: policy, loc: loc, now: time.Now, log: log}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ineligible explains why an employee was not promoted. An empty value means eligible.
func (e *Evaluator) Ineligible(emp *datastore.Employee, now time.Time) string {
	switch {
	case !emp.Active:
		return "inactive"
	case emp.Tier >= e.policy.TierMax:
		return "at max tier"
	case emp.HireDate == nil || *emp.HireDate == "":
		return "no hire date"
	case emp.MajorIssues > 0 || emp.MajorIssuesRecorded > 0:
		return "major issues"
	case emp.TotalWeeks <= 0:
		return "no attendance"
	}

	hired, err := period.ParseDate(*emp.HireDate, e.loc)
	if err != nil {
		return "unparseable hire date"
	}
	if days := tenureDays(hired, now.In(e.loc)); days < e.policy.TenureDays {
		return fmt.Sprintf("tenure %d days", days)
	}

	ratio := float64(emp.WeeksOnTime) / float64(emp.TotalWeeks)
	if ratio < e.policy.OnTimeThreshold {
		return fmt.Sprintf("on-time ratio %.2f", ratio)
	}
	return ""
}

// Evaluate promotes every eligible employee by exactly one tier and returns
// the number promoted. runID is recorded on each audit entry.
func (e *Evaluator) Evaluate(ctx context.Context, runID uint) (int, error) {
	employees, err := e.store.ListEmployees(ctx, true)
	if err != nil {
		return 0, err
	}

	now := e.now()
	promoted := 0
	for i := range employees {
		emp := &employees[i]
		if reason := e.Ineligible(emp, now); reason != "" {
			e.log.Debug("not eligible", logger.String("email", emp.Email), logger.String("reason", reason))
			continue
		}

		next := emp.Tier + 1
		role, ok := e.policy.Roles[next]
		if !ok || role == "" {
			return promoted, errors.Newf("no role configured for tier %d", next).
				Component("promotion").
				Category(errors.CategoryConfiguration).
				Context("email", emp.Email).
				Build()
		}

		p := datastore.Promotion{
			Email:    emp.Email,
			FromTier: emp.Tier,
			ToTier:   next,
			FromRole: emp.Role,
			ToRole:   role,
			Reason:   e.policy.Reason,
			RunID:    runID,
		}
		if err := e.store.ApplyPromotion(ctx, p); err != nil {
			if errors.IsCategory(err, errors.CategoryConflict) {
				e.log.Warn("promotion skipped, tier changed concurrently", logger.String("email", emp.Email))
				continue
			}
			return promoted, err
		}

		promoted++
		e.log.Info("employee promoted",
			logger.String("email", emp.Email),
			logger.Int("from_tier", p.FromTier),
			logger.Int("to_tier", p.ToTier),
			logger.String("role", role))
	}
	return promoted, nil
}

// tenureDays counts whole days between the hire date and now.
func tenureDays(hired, now time.Time) int {
	if now.Before(hired) {
		return 0
	}
	return int(now.Sub(hired).Hours() / 24)
}
