// Package report keeps the summary of the most recent scan run on disk so
// the status command can show it without touching the database.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"prompthunter/pkg/logger"
	"prompthunter/pkg/models"
)

// FileName is the report file inside the data directory
const FileName = "last_run.json"

// Manager reads and writes the run report
type Manager struct {
	path   string
	logger logger.Logger
}

// NewManager creates a manager for the report in dataDir
func NewManager(dataDir string, log logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Manager{
		path:   filepath.Join(dataDir, FileName),
		logger: log,
	}, nil
}

// Path returns the report location
func (m *Manager) Path() string {
	return m.path
}

// Load reads the last report. It returns nil without error when no run has been recorded.
func (m *Manager) Load() (*models.RunSummary, error) {
	file, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open run report: %w", err)
	}
	defer file.Close()

	var summary models.RunSummary
	if err := json.NewDecoder(file).Decode(&summary); err != nil {
		return nil, fmt.Errorf("failed to decode run report: %w", err)
	}
	return &summary, nil
}

// Save writes summary atomically, keeping the previous report as a backup
func (m *Manager) Save(summary *models.RunSummary) error {
	if err := m.backup(); err != nil {
		m.logger.WithError(err).Warn("failed to back up previous run report")
	}

	tempPath := m.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary report file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(summary); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode run report: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync report file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close report file: %w", err)
	}

	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace report file: %w", err)
	}

	m.logger.DebugWithFields("run report saved", map[string]interface{}{
		"run_id": summary.RunID,
		"path":   m.path,
	})
	return nil
}

// LoadPrevious reads the report that preceded the last one
func (m *Manager) LoadPrevious() (*models.RunSummary, error) {
	prev := &Manager{path: m.path + ".prev", logger: m.logger}
	return prev.Load()
}

// Delete removes the report and its backup
func (m *Manager) Delete() error {
	for _, p := range []string{m.path, m.path + ".prev"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete run report: %w", err)
		}
	}
	return nil
}

func (m *Manager) backup() error {
	src, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer src.Close()

	dst, err := os.Create(m.path + ".prev")
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
