package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/oremia/risk-matrix/internal/matrix/model"
)

// ErrIncompleteConfig is returned when an uploaded dataset is missing every
// row of one or more required row types. The wrapped message names the
// missing types.
var ErrIncompleteConfig = errors.New("incomplete risk model configuration")

// RowType discriminates configuration rows. Unrecognized values are skipped
// by the loader rather than rejected.
type RowType string

const (
	RowTypeProbability RowType = "probability"
	RowTypeSeverity    RowType = "severity"
	RowTypeLevel       RowType = "level"
)

// Row is one typed configuration entry, decoded at the parsing boundary.
// Type is matched case-insensitively after whitespace trimming.
type Row struct {
	Type  string
	Name  string
	Value int
}

// BuildModel accumulates rows into a candidate RiskModel and validates that
// all three row types are present. Duplicate probability or severity names
// overwrite earlier values; duplicate level entries are all retained. The
// returned model is fully formed but not installed anywhere — installing it
// is the caller's job.
func BuildModel(rows []Row) (*model.RiskModel, error) {
	candidate := &model.RiskModel{
		Probability: model.LevelMap{},
		Severity:    model.LevelMap{},
	}

	for _, row := range rows {
		switch RowType(strings.ToLower(strings.TrimSpace(row.Type))) {
		case RowTypeProbability:
			candidate.Probability[row.Name] = row.Value
		case RowTypeSeverity:
			candidate.Severity[row.Name] = row.Value
		case RowTypeLevel:
			candidate.Levels = append(candidate.Levels, model.ThresholdLevel{
				Name:      row.Name,
				Threshold: row.Value,
			})
		}
	}

	var missing []string
	if len(candidate.Probability) == 0 {
		missing = append(missing, "probability")
	}
	if len(candidate.Severity) == 0 {
		missing = append(missing, "severity")
	}
	if len(candidate.Levels) == 0 {
		missing = append(missing, "levels")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing row types: %s", ErrIncompleteConfig, strings.Join(missing, ", "))
	}

	return candidate, nil
}
