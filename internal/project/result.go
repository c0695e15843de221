package project

import (
	"fmt"
	"time"

	"github.com/piwi3910/SlabNest/internal/model"
)

// ResultVersion is the format version written by SaveResult.
const ResultVersion = "1.0.0"

// ResultFile is the on-disk envelope of a finished nesting run.
type ResultFile struct {
	Version   string              `json:"version"`
	CreatedAt string              `json:"created_at"`
	Config    model.NestingConfig `json:"config"`
	Result    model.NestResult    `json:"result"`
}

// NewResultFile wraps a result with the current time.
func NewResultFile(cfg model.NestingConfig, result model.NestResult) ResultFile {
	return ResultFile{
		Version:   ResultVersion,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Config:    cfg,
		Result:    result,
	}
}

// SaveResult writes the result envelope to path.
func SaveResult(path string, cfg model.NestingConfig, result model.NestResult) error {
	if err := writeJSON(path, NewResultFile(cfg, result)); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// LoadResult reads a result envelope written by SaveResult.
func LoadResult(path string) (ResultFile, error) {
	var f ResultFile
	if err := readJSON(path, &f); err != nil {
		return ResultFile{}, fmt.Errorf("failed to load result: %w", err)
	}
	if f.Version == "" {
		return ResultFile{}, fmt.Errorf("invalid result file: missing version field")
	}
	if _, err := time.Parse(time.RFC3339, f.CreatedAt); err != nil {
		return ResultFile{}, fmt.Errorf("invalid result file: bad created_at %q", f.CreatedAt)
	}
	return f, nil
}
