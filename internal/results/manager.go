// Package results stores run manifests: one JSON file per generation run
// describing what was asked for and what every job produced.
package results

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"bookpress/internal/generator"
	"bookpress/internal/logger"
	"bookpress/internal/types"
)

// RunsDirName is the manifest directory inside an output directory.
const RunsDirName = ".runs"

// RunStatus summarizes a run's outcome
type RunStatus string

const (
	// StatusComplete means every job succeeded (or there was nothing to render)
	StatusComplete RunStatus = "complete"
	// StatusPartial means some jobs failed
	StatusPartial RunStatus = "partial"
	// StatusFailed means every job failed
	StatusFailed RunStatus = "failed"
)

// JobRecord is the stored outcome of one job.
type JobRecord struct {
	Format         string `json:"format"`
	Part           int    `json:"part"`
	OutputPath     string `json:"output_path"`
	EstimatedPages int    `json:"estimated_pages"`
	ActualPages    int    `json:"actual_pages,omitempty"`
	Error          string `json:"error,omitempty"`
}

// RunInfo is the manifest of one run.
type RunInfo struct {
	ID        string        `json:"id"`
	Style     string        `json:"style"`
	Input     string        `json:"input"`
	InputMD5  string        `json:"input_md5,omitempty"`
	Formats   []string      `json:"formats"`
	Status    RunStatus     `json:"status"`
	Jobs      []JobRecord   `json:"jobs"`
	Warnings  []string      `json:"warnings,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	Duration  time.Duration `json:"duration"`
}

// Failed counts failed jobs.
func (r *RunInfo) Failed() int {
	n := 0
	for _, j := range r.Jobs {
		if j.Error != "" {
			n++
		}
	}
	return n
}

// NewRunInfo builds a manifest from a finished run.
func NewRunInfo(summary *generator.Summary, input string, formats []string) *RunInfo {
	info := &RunInfo{
		ID:        summary.RunID,
		Style:     summary.Style,
		Input:     input,
		Formats:   formats,
		CreatedAt: summary.StartedAt,
		Duration:  summary.Duration,
		Jobs:      make([]JobRecord, 0, len(summary.Results)),
	}
	for _, res := range summary.Results {
		info.Jobs = append(info.Jobs, JobRecord{
			Format:         res.Key.Format,
			Part:           res.Key.Part,
			OutputPath:     res.OutputPath,
			EstimatedPages: res.EstimatedPages,
			ActualPages:    res.ActualPages,
			Error:          res.Error,
		})
	}
	for _, w := range summary.Warnings {
		info.Warnings = append(info.Warnings, w.String())
	}

	switch failed := info.Failed(); {
	case failed == 0:
		info.Status = StatusComplete
	case failed == len(info.Jobs):
		info.Status = StatusFailed
	default:
		info.Status = StatusPartial
	}

	if input != "" {
		if sum, err := CalculateMD5(input); err == nil {
			info.InputMD5 = sum
		} else {
			logger.Debug("input checksum skipped", logger.String("input", input), logger.Err(err))
		}
	}
	return info
}

// ResultManager manages run manifests under <output>/.runs.
type ResultManager struct {
	baseDir string
}

// NewResultManager creates a manager for the output directory outputDir.
func NewResultManager(outputDir string) (*ResultManager, error) {
	if outputDir == "" {
		outputDir = "."
	}
	baseDir := filepath.Join(outputDir, RunsDirName)
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, types.NewAppError(types.ErrConfig, "failed to create runs directory", err)
	}
	return &ResultManager{baseDir: baseDir}, nil
}

// GetBaseDir returns the manifest directory
func (m *ResultManager) GetBaseDir() string {
	return m.baseDir
}

func (m *ResultManager) runPath(id string) string {
	return filepath.Join(m.baseDir, sanitizeRunID(id)+".json")
}

// SaveRun writes info, replacing any manifest with the same ID.
func (m *ResultManager) SaveRun(info *RunInfo) error {
	if strings.TrimSpace(info.ID) == "" {
		return types.NewAppError(types.ErrInvalidInput, "run has no ID", nil)
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to encode run manifest", err)
	}
	path := m.runPath(info.ID)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return types.NewAppErrorWithDetails(types.ErrConfig, "failed to write run manifest", path, err)
	}
	logger.Debug("run manifest saved", logger.String("runId", info.ID), logger.String("status", string(info.Status)))
	return nil
}

// LoadRun reads the manifest of run id.
func (m *ResultManager) LoadRun(id string) (*RunInfo, error) {
	path := m.runPath(id)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrFileNotFound, "run not found", id, err)
	}
	var info RunInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrConfigParse, "invalid run manifest", path, err)
	}
	return &info, nil
}

// ListRuns returns every readable manifest, newest first. Unreadable files
// are skipped.
func (m *ResultManager) ListRuns() ([]*RunInfo, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*RunInfo{}, nil
		}
		return nil, types.NewAppError(types.ErrFileNotFound, "failed to read runs directory", err)
	}

	runs := []*RunInfo{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		info, err := m.LoadRun(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			logger.Warn("skipping unreadable run manifest", logger.String("file", entry.Name()), logger.Err(err))
			continue
		}
		runs = append(runs, info)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

// DeleteRun removes the manifest of run id. Output PDFs are left alone.
func (m *ResultManager) DeleteRun(id string) error {
	if err := os.Remove(m.runPath(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return types.NewAppErrorWithDetails(types.ErrFileNotFound, "run not found", id, err)
		}
		return types.NewAppError(types.ErrConfig, "failed to delete run manifest", err)
	}
	return nil
}

// RunExists checks if a manifest for id exists
func (m *ResultManager) RunExists(id string) bool {
	_, err := os.Stat(m.runPath(id))
	return err == nil
}

// FindByInputMD5 returns the newest run built from an input with the given
// checksum, or nil.
func (m *ResultManager) FindByInputMD5(sum string) (*RunInfo, error) {
	runs, err := m.ListRuns()
	if err != nil {
		return nil, err
	}
	for _, r := range runs {
		if r.InputMD5 == sum {
			return r, nil
		}
	}
	return nil, nil
}

// sanitizeRunID converts a run ID to a safe file name
func sanitizeRunID(id string) string {
	return strings.NewReplacer("/", "_", `\`, "_", ":", "_", "..", "_").Replace(strings.TrimSpace(id))
}

// CalculateMD5 hashes a file, or for a directory every regular file in it
// in name order (file names included).
func CalculateMD5(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	hash := md5.New()
	if !info.IsDir() {
		if err := hashFile(hash, path); err != nil {
			return "", err
		}
		return hex.EncodeToString(hash.Sum(nil)), nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		io.WriteString(hash, e.Name())
		if err := hashFile(hash, filepath.Join(path, e.Name())); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

func hashFile(w io.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = io.Copy(w, file)
	return err
}
