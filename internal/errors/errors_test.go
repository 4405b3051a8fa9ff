package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) { r.reported = append(r.reported, ee) }
func (r *recordingReporter) IsEnabled() bool               { return true }

func TestBuildDefaults(t *testing.T) {
	t.Parallel()

	ee := New(fmt.Errorf("test error")).Build()
	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, "unknown", ee.Component)
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuildInheritsCategoryFromSentinel(t *testing.T) {
	t.Parallel()

	ee := New(fmt.Errorf("weeks/a.json: %w", ErrMalformedPayload)).Build()
	assert.Equal(t, CategoryFileParsing, ee.Category)
	require.ErrorIs(t, ee, ErrMalformedPayload)

	wrapped := New(fmt.Errorf("outer: %w", New(stderrors.New("inner")).Category(CategoryDatabase).Build())).Build()
	assert.Equal(t, CategoryDatabase, wrapped.Category)
}

func TestIsCategory(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("lookup: %w", New(stderrors.New("no such employee")).Category(CategoryNotFound).Build())
	assert.True(t, IsNotFound(err))
	assert.False(t, IsCategory(err, CategoryDatabase))
	assert.False(t, IsNotFound(stderrors.New("plain")))
}

func TestContextIsCopied(t *testing.T) {
	t.Parallel()

	ee := Newf("failed %d", 1).Context("period", "2025-W10").Context("operation", "ingest").Build()
	ctx := ee.GetContext()
	ctx["period"] = "changed"
	assert.Equal(t, "2025-W10", ee.GetContext()["period"])
	assert.Equal(t, "ingest", ee.GetContext()["operation"])
}

// Not parallel: mutates the package level reporter.
func TestTelemetryReporterReceivesBuiltErrors(t *testing.T) {
	rec := &recordingReporter{}
	SetTelemetryReporter(rec)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	New(stderrors.New("disk full")).Category(CategoryFileIO).Build()
	require.Len(t, rec.reported, 1)
	assert.Equal(t, CategoryFileIO, rec.reported[0].Category)
}

func TestRejections(t *testing.T) {
	t.Parallel()

	var rs Rejections
	rs.Add("a@example.com", "unknown employee")
	rs.Add("", "missing email")
	require.Len(t, rs, 2)
	assert.Equal(t, "a@example.com: unknown employee", rs[0].String())
	assert.Equal(t, "missing email", rs[1].String())
}

func TestScrubMessageForPrivacy(t *testing.T) {
	t.Parallel()

	got := scrubMessageForPrivacy("user jane.doe@corp.com failed on postgres://batch:pw@db/hr")
	assert.Equal(t, "user [EMAIL] failed on postgres://batch:[REDACTED]@db/hr", got)
}
