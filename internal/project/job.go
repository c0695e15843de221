// Package project reads and writes nesting jobs and results as JSON files.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/piwi3910/SlabNest/internal/model"
)

// LoadJob reads a job file. Missing configuration is left zero for the caller
// to fill from its defaults.
func LoadJob(path string) (model.NestJob, error) {
	var job model.NestJob
	if err := readJSON(path, &job); err != nil {
		return model.NestJob{}, fmt.Errorf("failed to load job: %w", err)
	}
	return job, nil
}

// SaveJob writes a job file, creating parent directories as needed.
func SaveJob(path string, job model.NestJob) error {
	if err := writeJSON(path, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// MergeInventory appends the imported parts whose ids are not yet present.
// It returns the merged inventory and the number of parts added.
func MergeInventory(existing, imported []model.RawPart) ([]model.RawPart, int) {
	seen := make(map[string]bool, len(existing))
	for _, p := range existing {
		seen[p.ID] = true
	}
	added := 0
	for _, p := range imported {
		if seen[p.ID] {
			continue
		}
		existing = append(existing, p)
		seen[p.ID] = true
		added++
	}
	return existing, added
}

// MergeStock appends the imported stock definitions whose names are new.
func MergeStock(existing, imported []model.StockDefinition) []model.StockDefinition {
	seen := make(map[string]bool, len(existing))
	for _, s := range existing {
		seen[s.Name] = true
	}
	for _, s := range imported {
		if !seen[s.Name] {
			existing = append(existing, s)
			seen[s.Name] = true
		}
	}
	return existing
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
