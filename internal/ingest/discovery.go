package ingest

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/afero"
	"github.com/tphakala/shiftledger/internal/errors"
	"github.com/tphakala/shiftledger/internal/input"
	"github.com/tphakala/shiftledger/internal/period"
)

// PeriodFile is a decoded weekly payload ready for ingestion.
type PeriodFile struct {
	Path          string
	ModTime       time.Time
	Key           string // effective period key
	Indeterminate bool   // Key is the fallback, not derived from the payload
	Payload       *input.WeeklyPayload
}

// SkippedFile is a payload that will not be ingested in this batch.
type SkippedFile struct {
	Path   string
	Reason string
}

// Discovery is the result of scanning the weeks directory.
type Discovery struct {
	Files         []PeriodFile
	Malformed     []SkippedFile
	Indeterminate []SkippedFile // skipped because the policy is "skip"
}

// DiscoverOptions controls how payloads without period markers are handled.
type DiscoverOptions struct {
	Location          *time.Location
	FallbackKey       string // period used for indeterminate payloads
	SkipIndeterminate bool
}

// Discover reads every JSON or YAML payload in dir and orders them by
// effective period key, then by modification time. A missing directory yields
// nothing. Undecodable files are reported and skipped.
func Discover(fs afero.Fs, dir string, opts DiscoverOptions) (*Discovery, error) {
	out := &Discovery{}

	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, errors.New(err).
			Component("ingest").
			Category(errors.CategoryFileIO).
			Context("dir", dir).
			Build()
	}

	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		path := filepath.Join(dir, info.Name())
		format := input.FormatFor(path)
		if format == input.FormatUnknown {
			continue
		}

		payload, err := readPayload(fs, path, format)
		if err != nil {
			out.Malformed = append(out.Malformed, SkippedFile{Path: path, Reason: err.Error()})
			continue
		}

		pf := PeriodFile{Path: path, ModTime: info.ModTime(), Payload: payload}
		key, err := period.Derive(Markers(payload), opts.Location)
		switch {
		case err == nil:
			pf.Key = key
		case opts.SkipIndeterminate:
			out.Indeterminate = append(out.Indeterminate, SkippedFile{Path: path, Reason: err.Error()})
			continue
		default:
			pf.Key = opts.FallbackKey
			pf.Indeterminate = true
		}
		out.Files = append(out.Files, pf)
	}

	sort.SliceStable(out.Files, func(i, j int) bool {
		a, b := out.Files[i], out.Files[j]
		if a.Key != b.Key {
			return a.Key < b.Key
		}
		if !a.ModTime.Equal(b.ModTime) {
			return a.ModTime.Before(b.ModTime)
		}
		return a.Path < b.Path
	})
	return out, nil
}

// Markers extracts the period hints of a payload.
func Markers(p *input.WeeklyPayload) period.Markers {
	return period.Markers{
		WeekKey:   p.WeekKey.String(),
		WeekStart: p.WeekStart.String(),
		WeekEnd:   p.WeekEnd.String(),
	}
}

func readPayload(fs afero.Fs, path string, format input.Format) (*input.WeeklyPayload, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return input.DecodeWeekly(f, format)
}
