// Package model defines the risk matrix domain model: the probability and
// severity level maps, the ordered risk-level threshold bands, and the
// assessment computations derived from them.
package model

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownLevel is returned when a probability or severity name is not
// present in the current configuration.
var ErrUnknownLevel = errors.New("level name not found in current configuration")

// UnknownRiskLevel is the label returned for a risk value above every
// configured threshold. The default configuration's 999 ceiling makes it
// unreachable, but uploaded configurations may cap their top band lower.
const UnknownRiskLevel = "未知风险"

// LevelMap maps a level name to its integer rank. Ranks are compared only by
// relative order; they need not be contiguous.
type LevelMap map[string]int

// ThresholdLevel names a risk band and its inclusive upper bound.
type ThresholdLevel struct {
	Name      string `json:"name"`
	Threshold int    `json:"threshold"`
}

// RiskModel is the full scoring configuration. A model is built once and then
// treated as read-only; reconfiguration replaces the whole model.
type RiskModel struct {
	Probability LevelMap         `json:"probability"`
	Severity    LevelMap         `json:"severity"`
	Levels      []ThresholdLevel `json:"levels"`
}

// Assessment is the result of scoring one (probability, severity) pair.
type Assessment struct {
	Probability string `json:"probability"`
	Severity    string `json:"severity"`
	RiskValue   int    `json:"risk_value"`
	RiskLevel   string `json:"risk_level"`
}

// Matrix is the full cross-product visualization of a model: one row per
// probability level, one column per severity level, both rank-ascending.
type Matrix struct {
	ProbabilityAxis []string       `json:"probability_axis"`
	SeverityAxis    []string       `json:"severity_axis"`
	Cells           [][]Assessment `json:"matrix_data"`
}

// Default returns the built-in scoring configuration: five probability levels
// (1..5), four severity levels (1..4), and four bands with inclusive upper
// bounds at 4, 9, 15, and 999.
func Default() *RiskModel {
	return &RiskModel{
		Probability: LevelMap{
			"极少发生": 1,
			"很少发生": 2,
			"偶尔发生": 3,
			"有时发生": 4,
			"经常发生": 5,
		},
		Severity: LevelMap{
			"轻微": 1,
			"轻度": 2,
			"严重": 3,
			"灾难": 4,
		},
		Levels: []ThresholdLevel{
			{Name: "低风险", Threshold: 4},
			{Name: "中风险", Threshold: 9},
			{Name: "高风险", Threshold: 15},
			{Name: "极高风险", Threshold: 999},
		},
	}
}

// RiskValue computes the product score for two already-resolved ranks.
func RiskValue(probabilityRank, severityRank int) int {
	return probabilityRank * severityRank
}

// RiskLevel returns the name of the lowest band whose threshold is >= value.
// Thresholds are inclusive upper bounds: a value exactly on a threshold
// belongs to that band. Values above every threshold map to UnknownRiskLevel.
func (m *RiskModel) RiskLevel(value int) string {
	levels := make([]ThresholdLevel, len(m.Levels))
	copy(levels, m.Levels)
	sort.SliceStable(levels, func(i, j int) bool { return levels[i].Threshold < levels[j].Threshold })

	for _, l := range levels {
		if value <= l.Threshold {
			return l.Name
		}
	}
	return UnknownRiskLevel
}

// ProbabilityNames returns the probability level names sorted ascending by
// rank. Equal ranks are tie-broken by name so the ordering is deterministic.
func (m *RiskModel) ProbabilityNames() []string {
	return SortedNames(m.Probability)
}

// SeverityNames returns the severity level names sorted ascending by rank.
func (m *RiskModel) SeverityNames() []string {
	return SortedNames(m.Severity)
}

// SortedNames returns the level names of a LevelMap sorted ascending by rank,
// tie-broken by name. It is the single ordering used for every axis listing,
// local or remote.
func SortedNames(levels LevelMap) []string {
	names := make([]string, 0, len(levels))
	for name := range levels {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if levels[names[i]] != levels[names[j]] {
			return levels[names[i]] < levels[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// LookupProbability resolves a probability level name to its rank.
func (m *RiskModel) LookupProbability(name string) (int, error) {
	rank, ok := m.Probability[name]
	if !ok {
		return 0, fmt.Errorf("%w: probability %q", ErrUnknownLevel, name)
	}
	return rank, nil
}

// LookupSeverity resolves a severity level name to its rank.
func (m *RiskModel) LookupSeverity(name string) (int, error) {
	rank, ok := m.Severity[name]
	if !ok {
		return 0, fmt.Errorf("%w: severity %q", ErrUnknownLevel, name)
	}
	return rank, nil
}

// Assess scores one (probability, severity) pair. Both names are validated
// before anything is computed; an unknown name on either axis returns
// ErrUnknownLevel and a zero Assessment.
func (m *RiskModel) Assess(probability, severity string) (Assessment, error) {
	probRank, err := m.LookupProbability(probability)
	if err != nil {
		return Assessment{}, err
	}
	sevRank, err := m.LookupSeverity(severity)
	if err != nil {
		return Assessment{}, err
	}

	value := RiskValue(probRank, sevRank)
	return Assessment{
		Probability: probability,
		Severity:    severity,
		RiskValue:   value,
		RiskLevel:   m.RiskLevel(value),
	}, nil
}

// Visualize produces the full cross-product matrix for the model. The output
// is deterministic: axes are rank-ascending with name tie-breaks, and
// Cells[i][j] scores (ProbabilityAxis[i], SeverityAxis[j]).
func (m *RiskModel) Visualize() Matrix {
	probAxis := m.ProbabilityNames()
	sevAxis := m.SeverityNames()

	cells := make([][]Assessment, len(probAxis))
	for i, probName := range probAxis {
		row := make([]Assessment, len(sevAxis))
		for j, sevName := range sevAxis {
			value := RiskValue(m.Probability[probName], m.Severity[sevName])
			row[j] = Assessment{
				Probability: probName,
				Severity:    sevName,
				RiskValue:   value,
				RiskLevel:   m.RiskLevel(value),
			}
		}
		cells[i] = row
	}

	return Matrix{
		ProbabilityAxis: probAxis,
		SeverityAxis:    sevAxis,
		Cells:           cells,
	}
}
