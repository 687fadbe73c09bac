package operations

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReport(t *testing.T) {
	t.Parallel()

	def := Definition{ID: "send", Version: semver.MustParse("1.0.0")}

	ok := NewReport(def, 1, "0xabc", nil)
	assert.NotEmpty(t, ok.ID)
	assert.NotNil(t, ok.Timestamp)
	assert.Nil(t, ok.Err)

	failed := NewReport(def, 1, "", errors.New("reverted"))
	require.NotNil(t, failed.Err)
	assert.Equal(t, "reverted", failed.Err.Error())
	assert.NotEqual(t, ok.ID, failed.ID)
}

func TestMemoryReporter(t *testing.T) {
	t.Parallel()

	def := Definition{ID: "send", Version: semver.MustParse("1.0.0")}
	existing := NewReport(def, 1, 2, nil).ToGenericReport()
	reporter := NewMemoryReporter(WithReports([]Report[any, any]{existing}))

	added := NewReport(def, 3, 4, nil).ToGenericReport()
	require.NoError(t, reporter.AddReport(added))

	reports, err := reporter.GetReports()
	require.NoError(t, err)
	assert.Len(t, reports, 2)

	got, err := reporter.GetReport(added.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Input)

	_, err = reporter.GetReport("missing")
	require.ErrorIs(t, err, ErrReportNotFound)
}

func TestFileReporter(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history", "reports.jsonl")
	reporter := NewFileReporter(path)

	reports, err := reporter.GetReports()
	require.NoError(t, err)
	assert.Empty(t, reports)

	def := Definition{ID: "propose", Version: semver.MustParse("1.0.0"), Description: "propose a safe transaction"}
	first := NewReport(def, map[string]string{"to": "0x01"}, "0xhash", nil).ToGenericReport()
	second := NewReport(def, map[string]string{"to": "0x02"}, "", errors.New("rejected")).ToGenericReport()
	require.NoError(t, reporter.AddReport(first))
	require.NoError(t, reporter.AddReport(second))

	reports, err = NewFileReporter(path).GetReports()
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, first.ID, reports[0].ID)
	assert.Equal(t, "1.0.0", reports[0].Def.Version.String())
	assert.Equal(t, "0xhash", reports[0].Output)
	assert.Equal(t, map[string]any{"to": "0x02"}, reports[1].Input)
	require.NotNil(t, reports[1].Err)
	assert.Equal(t, "rejected", reports[1].Err.Message)

	got, err := reporter.GetReport(second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	require.NoError(t, os.WriteFile(path, []byte("{not json\n"), 0o600))
	_, err = reporter.GetReports()
	require.ErrorContains(t, err, "line 1")
}
