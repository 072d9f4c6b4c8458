// Package service holds the risk model loader and the process-wide store for
// the currently active model.
package service

import (
	"sync"

	"github.com/google/uuid"
	"github.com/oremia/risk-matrix/internal/matrix/model"
	"go.uber.org/zap"
)

// Store owns the single active RiskModel. Reads take a shared view; Replace
// swaps the whole model under an exclusive lock, so a reader never observes a
// half-updated configuration. Models handed to Replace must not be mutated
// afterwards by the caller.
type Store struct {
	mu       sync.RWMutex
	current  *model.RiskModel
	revision uuid.UUID
	logger   *zap.Logger
}

// NewStore creates a Store seeded with the given model, typically
// model.Default().
func NewStore(initial *model.RiskModel, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		current:  initial,
		revision: uuid.New(),
		logger:   logger,
	}
}

// Current returns the active model. The returned model is shared and must be
// treated as read-only.
func (s *Store) Current() *model.RiskModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Revision returns the ID assigned to the active model at install time.
func (s *Store) Revision() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Replace installs m as the active model wholesale and returns the new
// revision ID. There is no merging with the previous configuration.
func (s *Store) Replace(m *model.RiskModel) uuid.UUID {
	rev := uuid.New()

	s.mu.Lock()
	s.current = m
	s.revision = rev
	s.mu.Unlock()

	s.logger.Info("risk model replaced",
		zap.String("revision", rev.String()),
		zap.Int("probability_levels", len(m.Probability)),
		zap.Int("severity_levels", len(m.Severity)),
		zap.Int("threshold_levels", len(m.Levels)),
	)
	return rev
}
