package adapter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	m "github.com/opaquebits/modelinspect/internal/model"
)

// ReportStore persists and retrieves scan reports. Reports are stored as
// one JSON file per scan, named by scan ID, so the machine-readable form
// on disk is byte-identical to what the CI gate consumes.
type ReportStore interface {
	Save(dir m.Path, report m.Report) (m.Path, error)
	Load(path m.Path) (m.Report, error)
	List(dir m.Path) ([]m.Report, error)
}

// LocalReportStore is the disk-backed ReportStore implementation.
type LocalReportStore struct{}

// NewReportStore constructs a ReportStore implementation.
func NewReportStore() *LocalReportStore {
	return &LocalReportStore{}
}

// Save writes one report into dir, creating it if needed, and returns the
// file path.
func (rs *LocalReportStore) Save(dir m.Path, report m.Report) (m.Path, error) {
	if err := os.MkdirAll(string(dir), 0o750); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	path := filepath.Join(string(dir), report.ScanID+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	return m.Path(path), nil
}

// Load reads one report file.
func (rs *LocalReportStore) Load(path m.Path) (m.Report, error) {
	data, err := os.ReadFile(string(path))
	if err != nil {
		return m.Report{}, fmt.Errorf("read report: %w", err)
	}

	var report m.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return m.Report{}, fmt.Errorf("decode report %s: %w", path, err)
	}

	return report, nil
}

// List loads every report in dir, sorted by file name for stable output.
// Unreadable or non-report files are skipped.
func (rs *LocalReportStore) List(dir m.Path) ([]m.Report, error) {
	entries, err := os.ReadDir(string(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("read reports dir: %w", err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		names = append(names, entry.Name())
	}

	sort.Strings(names)

	reports := make([]m.Report, 0, len(names))

	for _, name := range names {
		report, err := rs.Load(m.Path(filepath.Join(string(dir), name)))
		if err != nil {
			continue
		}

		reports = append(reports, report)
	}

	return reports, nil
}
