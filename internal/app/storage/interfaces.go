// Package storage defines the persistence interfaces for the player layer.
package storage

import (
	"context"
	"errors"

	"github.com/cobx-network/player_layer/internal/app/domain/profile"
	"github.com/cobx-network/player_layer/internal/app/domain/provision"
	"github.com/cobx-network/player_layer/internal/chain"
)

// ErrNotFound is returned when no record matches the query.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a unique constraint rejects an insert.
var ErrDuplicate = errors.New("record already exists")

// ProfileStore persists user profiles. Row updates are atomic; they are not
// composable with ledger submissions into one transaction.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error)
	GetProfile(ctx context.Context, userID string) (profile.Profile, error)
	GetProfileByWallet(ctx context.Context, wallet chain.Address) (profile.Profile, error)
	// UpdateProfile applies all non-nil patch fields in a single row update.
	UpdateProfile(ctx context.Context, userID string, patch profile.Patch) (profile.Profile, error)
}

// IntentStore persists the provisioning intent log.
type IntentStore interface {
	CreateIntent(ctx context.Context, it provision.Intent) (provision.Intent, error)
	UpdateIntent(ctx context.Context, it provision.Intent) (provision.Intent, error)
	GetIntent(ctx context.Context, userID string, player chain.Address) (provision.Intent, error)
	ListIntents(ctx context.Context, userID string) ([]provision.Intent, error)
}
