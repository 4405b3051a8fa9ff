// Package roster synchronizes the employee table with the roster feed.
package roster

import (
	"context"
	"os"

	"github.com/spf13/afero"
	"github.com/tphakala/shiftledger/internal/datastore"
	"github.com/tphakala/shiftledger/internal/errors"
	"github.com/tphakala/shiftledger/internal/input"
	"github.com/tphakala/shiftledger/internal/logger"
)

// DefaultRole is assigned to new employees whose roster entry names no role.
const DefaultRole = "Staff"

// Store is the persistence the synchronizer needs.
type Store interface {
	UpsertEmployee(ctx context.Context, email string, merge datastore.MergeFunc) (bool, error)
}

// Result counts the outcome of one synchronization.
type Result struct {
	Inserted   int
	Updated    int
	Rejected   int
	Rejections errors.Rejections
}

// Synchronizer upserts roster entries by email.
type Synchronizer struct {
	store   Store
	tierMax int
	log     logger.Logger
}

// New creates a synchronizer. Roster tiers are clamped to [1, tierMax].
func New(store Store, tierMax int, log logger.Logger) *Synchronizer {
	if log == nil {
		log = logger.Global().Module("roster")
	}
	if tierMax < 1 {
		tierMax = 1
	}
	return &Synchronizer{store: store, tierMax: tierMax, log: log}
}

// Load reads the roster document at path. A missing file is an empty roster.
func Load(fs afero.Fs, path string) ([]input.RosterEntry, error) {
	f, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.New(err).
			Component("roster").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer f.Close()

	format := input.FormatFor(path)
	if format == input.FormatUnknown {
		format = input.FormatJSON
	}
	entries, err := input.DecodeRoster(f, format)
	if err != nil {
		return nil, errors.New(err).
			Component("roster").
			Context("path", path).
			Build()
	}
	return entries, nil
}

// Sync upserts every valid entry in order. Invalid entries are counted and
// skipped; only store failures abort.
func (s *Synchronizer) Sync(ctx context.Context, entries []input.RosterEntry) (Result, error) {
	var res Result

	for _, entry := range entries {
		rec, err := entry.Normalize()
		if err != nil {
			res.Rejected++
			res.Rejections.Add(rec.Email, err.Error())
			s.log.Warn("rejected roster entry", logger.String("email", rec.Email), logger.String("reason", err.Error()))
			continue
		}

		inserted, err := s.store.UpsertEmployee(ctx, rec.Email, s.merge(rec))
		if errors.IsCategory(err, errors.CategoryConflict) {
			res.Rejected++
			res.Rejections.Add(rec.Email, err.Error())
			s.log.Warn("rejected roster entry", logger.String("email", rec.Email), logger.String("reason", err.Error()))
			continue
		}
		if err != nil {
			return res, err
		}
		if inserted {
			res.Inserted++
			s.log.Info("employee inserted", logger.String("email", rec.Email))
		} else {
			res.Updated++
			s.log.Info("employee updated", logger.String("email", rec.Email))
		}
	}

	s.log.Info("roster synchronized",
		logger.Int("inserted", res.Inserted),
		logger.Int("updated", res.Updated),
		logger.Int("rejected", res.Rejected))
	return res, nil
}

// merge applies the roster entry on top of the stored employee.
//
// Identity fields are overwritten. The hire date is kept when the roster
// omits it. The tier is only ever raised here; lowering it would undo
// promotions. An explicit role applies when the roster tier is at least the
// stored tier, otherwise the stored role stays.
func (s *Synchronizer) merge(rec input.RosterRecord) datastore.MergeFunc {
	return func(existing *datastore.Employee) (*datastore.Employee, error) {
		tier := s.clampTier(rec.Tier)

		next := &datastore.Employee{
			Email:       rec.Email,
			EmployeeNum: rec.EmployeeNum,
			FirstName:   rec.FirstName,
			LastName:    rec.LastName,
			Department:  rec.Department,
			HireDate:    rec.HireDate,
			MajorIssues: rec.MajorIssues,
			Active:      rec.Active,
			Tier:        tier,
			Role:        DefaultRole,
		}
		if rec.Role != nil {
			next.Role = *rec.Role
		}

		if existing == nil {
			return next, nil
		}

		if next.HireDate == nil {
			next.HireDate = existing.HireDate
		}
		if existing.Tier > tier {
			next.Tier = existing.Tier
			next.Role = existing.Role
		} else if rec.Role == nil {
			next.Role = existing.Role
		}

		next.HoursTotal = existing.HoursTotal
		next.TotalWeeks = existing.TotalWeeks
		next.WeeksOnTime = existing.WeeksOnTime
		next.MajorIssuesRecorded = existing.MajorIssuesRecorded
		return next, nil
	}
}

func (s *Synchronizer) clampTier(tier int) int {
	switch {
	case tier < 1:
		return 1
	case tier > s.tierMax:
		return s.tierMax
	}
	return tier
}
