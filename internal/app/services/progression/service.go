// Package progression provides experience and level bookkeeping on top of
// the profile store.
package progression

import (
	"context"
	"fmt"

	domain "github.com/cobx-network/player_layer/internal/app/domain/progression"
	"github.com/cobx-network/player_layer/internal/app/domain/profile"
	"github.com/cobx-network/player_layer/internal/app/domain/provision"
	"github.com/cobx-network/player_layer/internal/app/storage"
	"github.com/cobx-network/player_layer/pkg/logger"
)

// Service manages player progression.
type Service struct {
	store storage.ProfileStore
	log   *logger.Logger
}

// New constructs a progression service.
func New(store storage.ProfileStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("progression")
	}
	return &Service{store: store, log: log}
}

// AddExperience credits experience to the player and recomputes the level.
func (s *Service) AddExperience(ctx context.Context, userID string, delta int64) (domain.Snapshot, error) {
	if delta <= 0 {
		return domain.Snapshot{}, fmt.Errorf("%w: experience delta must be positive", provision.ErrValidation)
	}

	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("load profile: %w", err)
	}

	exp := p.Experience + delta
	level := domain.LevelForExperience(exp)
	updated, err := s.store.UpdateProfile(ctx, userID, profile.Patch{Experience: &exp, Level: &level})
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("update progression: %w", err)
	}

	if updated.Level > p.Level {
		s.log.WithField("user_id", userID).
			WithField("level", updated.Level).
			Info("player leveled up")
	}

	return snapshot(updated), nil
}

// Get returns the player's current progression.
func (s *Service) Get(ctx context.Context, userID string) (domain.Snapshot, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("load profile: %w", err)
	}
	return snapshot(p), nil
}

func snapshot(p profile.Profile) domain.Snapshot {
	return domain.Snapshot{
		UserID:     p.UserID,
		Experience: p.Experience,
		Level:      p.Level,
		UpdatedAt:  p.UpdatedAt,
	}
}
