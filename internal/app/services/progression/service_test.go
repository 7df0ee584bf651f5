package progression

import (
	"context"
	"errors"
	"testing"

	domain "github.com/cobx-network/player_layer/internal/app/domain/progression"
	"github.com/cobx-network/player_layer/internal/app/domain/profile"
	"github.com/cobx-network/player_layer/internal/app/domain/provision"
	"github.com/cobx-network/player_layer/internal/app/storage/memory"
)

func TestAddExperience(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()

	if _, err := store.CreateProfile(ctx, profile.Profile{UserID: "u1"}); err != nil {
		t.Fatalf("create profile: %v", err)
	}

	snap, err := svc.AddExperience(ctx, "u1", 50)
	if err != nil {
		t.Fatalf("add experience: %v", err)
	}
	if snap.Experience != 50 || snap.Level != 1 {
		t.Fatalf("expected 50xp level 1, got %+v", snap)
	}

	snap, err = svc.AddExperience(ctx, "u1", 75)
	if err != nil {
		t.Fatalf("add experience: %v", err)
	}
	if snap.Experience != 125 || snap.Level != 2 {
		t.Fatalf("expected 125xp level 2, got %+v", snap)
	}

	if _, err := svc.AddExperience(ctx, "u1", 0); !errors.Is(err, provision.ErrValidation) {
		t.Fatalf("non-positive delta: got %v, want ErrValidation", err)
	}
	if _, err := svc.AddExperience(ctx, "u1", -5); !errors.Is(err, provision.ErrValidation) {
		t.Fatalf("negative delta: got %v, want ErrValidation", err)
	}
	if _, err := svc.AddExperience(ctx, "missing", 10); err == nil {
		t.Fatalf("expected error for unknown user")
	}
}

func TestLevelForExperience(t *testing.T) {
	cases := []struct {
		exp  int64
		want int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{249, 2},
		{250, 3},
	}
	for _, tc := range cases {
		if got := domain.LevelForExperience(tc.exp); got != tc.want {
			t.Fatalf("LevelForExperience(%d) = %d, want %d", tc.exp, got, tc.want)
		}
	}
}
