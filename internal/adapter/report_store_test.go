package adapter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "github.com/opaquebits/modelinspect/internal/model"
)

func sampleReport(scanID string) m.Report {
	return m.Report{
		ScanID:       scanID,
		Artifact:     "model.pkl",
		ArtifactHash: "deadbeef",
		Format:       m.FormatPickle,
		Status:       m.StatusReported,
		Verdict:      m.VerdictCritical,
		Findings: []m.Finding{
			{
				Severity: m.SeverityCritical,
				RuleID:   "exec.os",
				Category: m.CategoryExecution,
				Message:  "pickle imports os.system",
				Payload:  "model.pkl",
				Offset:   2,
			},
		},
		PayloadsScanned: 1,
		DurationMS:      12,
	}
}

func TestReportStore_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewReportStore()
	dir := m.Path(filepath.Join(t.TempDir(), "reports"))

	saved := sampleReport("scan-0001")

	path, err := store.Save(dir, saved)
	require.NoError(t, err)
	assert.Equal(t, "scan-0001.json", filepath.Base(string(path)))

	loaded, err := store.Load(path)
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

func TestReportStore_ListSortsByName(t *testing.T) {
	t.Parallel()

	store := NewReportStore()
	dir := m.Path(t.TempDir())

	for _, id := range []string{"scan-b", "scan-a", "scan-c"} {
		_, err := store.Save(dir, sampleReport(id))
		require.NoError(t, err)
	}

	reports, err := store.List(dir)
	require.NoError(t, err)
	require.Len(t, reports, 3)

	assert.Equal(t, "scan-a", reports[0].ScanID)
	assert.Equal(t, "scan-b", reports[1].ScanID)
	assert.Equal(t, "scan-c", reports[2].ScanID)
}

func TestReportStore_ListSkipsForeignFiles(t *testing.T) {
	t.Parallel()

	store := NewReportStore()
	dir := t.TempDir()

	_, err := store.Save(m.Path(dir), sampleReport("scan-x"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o600))

	reports, err := store.List(m.Path(dir))
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "scan-x", reports[0].ScanID)
}

func TestReportStore_ListMissingDirIsEmpty(t *testing.T) {
	t.Parallel()

	reports, err := NewReportStore().List(m.Path(filepath.Join(t.TempDir(), "absent")))
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := NewReportStore().Load(m.Path(filepath.Join(t.TempDir(), "absent.json")))
	assert.Error(t, err)
}
