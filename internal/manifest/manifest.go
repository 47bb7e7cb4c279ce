// Package manifest reads pipeline manifest files.
//
// A pipeline manifest is a CSV file that overrides the built-in step table:
// which statuses each step may run from and which status it leads to. It lets
// an operator tighten the pipeline (for example, forbid re-running analyze)
// without a rebuild.
//
// CSV format:
//
//	step,capability,trigger_status,next_status
//	analyze,ai,draft,analyzing
//	plan,ai,analyzing,planning
//	write-block,ai,planning,writing
//	write-block,ai,writing,writing
//	media,ai,writing,media
//	seo-check,ai,media,reviewing
//	seo-check,ai,seo_check,reviewing
//	publish,publishing,reviewing,published
//	refresh,ai,published,analyzing
//
// A step may appear multiple times with different trigger_status values.
// The capability column is informational and optional.
package manifest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// StepEntry represents a single row in the pipeline manifest CSV.
type StepEntry struct {
	// Step is the step name (e.g., "write-block").
	Step string

	// Capability names the external capability the step calls ("ai", "publishing").
	Capability string

	// TriggerStatus is a status the step may run from. Empty rows only
	// declare the step and its target.
	TriggerStatus string

	// NextStatus is the status set after successful step completion.
	NextStatus string
}

// Manifest holds all step entries parsed from a manifest CSV file.
type Manifest struct {
	// Entries are the step entries in file order.
	Entries []StepEntry
}

// ReadFromFile reads and parses a pipeline manifest CSV file.
func ReadFromFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	return readFromReader(f)
}

// ReadFromString parses a pipeline manifest from a CSV string.
func ReadFromString(data string) (*Manifest, error) {
	return readFromReader(strings.NewReader(data))
}

func readFromReader(r io.Reader) (*Manifest, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest header: %w", err)
	}

	colIndex := buildColumnIndex(header)
	if err := validateColumns(colIndex); err != nil {
		return nil, err
	}

	var entries []StepEntry
	lineNum := 1
	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest line %d: %w", lineNum, err)
		}

		entry := StepEntry{
			Step:          getField(record, colIndex, "step"),
			Capability:    getField(record, colIndex, "capability"),
			TriggerStatus: getField(record, colIndex, "trigger_status"),
			NextStatus:    getField(record, colIndex, "next_status"),
		}

		if entry.Step == "" {
			return nil, fmt.Errorf("manifest line %d: step name is required", lineNum)
		}
		if entry.NextStatus == "" {
			return nil, fmt.Errorf("manifest line %d: next_status is required", lineNum)
		}

		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("manifest contains no step entries")
	}

	return &Manifest{Entries: entries}, nil
}

// requiredColumns are the columns that must be present in the manifest CSV.
var requiredColumns = []string{"step", "trigger_status", "next_status"}

func buildColumnIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(strings.ToLower(col))] = i
	}
	return index
}

func validateColumns(colIndex map[string]int) error {
	for _, col := range requiredColumns {
		if _, ok := colIndex[col]; !ok {
			return fmt.Errorf("manifest missing required column: %s", col)
		}
	}
	return nil
}

func getField(record []string, colIndex map[string]int, column string) string {
	idx, ok := colIndex[column]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// Steps returns the unique step names in order of first appearance.
func (m *Manifest) Steps() []string {
	seen := make(map[string]bool)
	var steps []string
	for _, e := range m.Entries {
		if !seen[e.Step] {
			seen[e.Step] = true
			steps = append(steps, e.Step)
		}
	}
	return steps
}

// GetEntriesForStatus returns all entries that have the given trigger status.
func (m *Manifest) GetEntriesForStatus(triggerStatus string) []StepEntry {
	var entries []StepEntry
	for _, e := range m.Entries {
		if e.TriggerStatus == triggerStatus {
			entries = append(entries, e)
		}
	}
	return entries
}
