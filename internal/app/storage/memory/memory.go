// Package memory provides an in-memory implementation of the storage
// interfaces, safe for concurrent use and intended for tests and local
// development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cobx-network/player_layer/internal/app/domain/profile"
	"github.com/cobx-network/player_layer/internal/app/domain/provision"
	"github.com/cobx-network/player_layer/internal/app/storage"
	"github.com/cobx-network/player_layer/internal/chain"
)

// Store is the in-memory implementation of the storage interfaces.
type Store struct {
	mu               sync.RWMutex
	profiles         map[string]profile.Profile
	profilesByWallet map[chain.Address]string
	intents          map[string]provision.Intent
	intentKeys       map[string]string // userID|player -> intent id
}

var _ storage.ProfileStore = (*Store)(nil)
var _ storage.IntentStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		profiles:         make(map[string]profile.Profile),
		profilesByWallet: make(map[chain.Address]string),
		intents:          make(map[string]provision.Intent),
		intentKeys:       make(map[string]string),
	}
}

// ProfileStore implementation ------------------------------------------------

func (s *Store) CreateProfile(_ context.Context, p profile.Profile) (profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[p.UserID]; exists {
		return profile.Profile{}, storage.ErrDuplicate
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.PDAStatus == "" {
		p.PDAStatus = profile.StatusNone
	}
	if p.Level == 0 {
		p.Level = 1
	}

	s.profiles[p.UserID] = p
	if p.WalletAddress != "" {
		s.profilesByWallet[p.WalletAddress] = p.UserID
	}
	return p, nil
}

func (s *Store) GetProfile(_ context.Context, userID string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return profile.Profile{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetProfileByWallet(_ context.Context, wallet chain.Address) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.profilesByWallet[wallet]
	if !ok {
		return profile.Profile{}, storage.ErrNotFound
	}
	return s.profiles[userID], nil
}

func (s *Store) UpdateProfile(_ context.Context, userID string, patch profile.Patch) (profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return profile.Profile{}, storage.ErrNotFound
	}

	if patch.WalletAddress != nil {
		delete(s.profilesByWallet, p.WalletAddress)
		p.WalletAddress = *patch.WalletAddress
		if p.WalletAddress != "" {
			s.profilesByWallet[p.WalletAddress] = userID
		}
	}
	if patch.PlayerAccountAddress != nil {
		p.PlayerAccountAddress = *patch.PlayerAccountAddress
	}
	if patch.CobxTokenAccountAddress != nil {
		p.CobxTokenAccountAddress = *patch.CobxTokenAccountAddress
	}
	if patch.PDAStatus != nil {
		p.PDAStatus = *patch.PDAStatus
	}
	if patch.SessionIdentity != nil {
		p.SessionIdentity = *patch.SessionIdentity
	}
	if patch.SessionPrivateKey != nil {
		p.SessionPrivateKey = *patch.SessionPrivateKey
	}
	if patch.Experience != nil {
		p.Experience = *patch.Experience
	}
	if patch.Level != nil {
		p.Level = *patch.Level
	}
	p.UpdatedAt = time.Now().UTC()

	s.profiles[userID] = p
	return p, nil
}

// IntentStore implementation ---------------------------------------------------

func intentKey(userID string, player chain.Address) string {
	return userID + "|" + string(player)
}

func (s *Store) CreateIntent(_ context.Context, it provision.Intent) (provision.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := intentKey(it.UserID, it.PlayerAddress)
	if _, exists := s.intentKeys[key]; exists {
		return provision.Intent{}, storage.ErrDuplicate
	}

	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	it.CreatedAt = now
	it.UpdatedAt = now

	s.intents[it.ID] = it
	s.intentKeys[key] = it.ID
	return it, nil
}

func (s *Store) UpdateIntent(_ context.Context, it provision.Intent) (provision.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.intents[it.ID]
	if !ok {
		return provision.Intent{}, storage.ErrNotFound
	}

	it.CreatedAt = existing.CreatedAt
	it.UpdatedAt = time.Now().UTC()
	s.intents[it.ID] = it
	return it, nil
}

func (s *Store) GetIntent(_ context.Context, userID string, player chain.Address) (provision.Intent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.intentKeys[intentKey(userID, player)]
	if !ok {
		return provision.Intent{}, storage.ErrNotFound
	}
	return s.intents[id], nil
}

func (s *Store) ListIntents(_ context.Context, userID string) ([]provision.Intent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []provision.Intent
	for _, it := range s.intents {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	return out, nil
}
