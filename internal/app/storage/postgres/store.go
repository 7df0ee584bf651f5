// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/cobx-network/player_layer/internal/app/domain/profile"
	"github.com/cobx-network/player_layer/internal/app/domain/provision"
	"github.com/cobx-network/player_layer/internal/app/storage"
	"github.com/cobx-network/player_layer/internal/chain"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.ProfileStore = (*Store)(nil)
var _ storage.IntentStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const pqUniqueViolation = "23505"

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
		return storage.ErrDuplicate
	}
	return err
}

// --- ProfileStore -----------------------------------------------------------

const profileColumns = `user_id, wallet_address, player_account_address, cobx_token_account_address,
		pda_status, session_identity, session_private_key, experience, level, created_at, updated_at`

func (s *Store) CreateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.PDAStatus == "" {
		p.PDAStatus = profile.StatusNone
	}
	if p.Level == 0 {
		p.Level = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO player_profiles (`+profileColumns+`)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10, $11)
	`, p.UserID, string(p.WalletAddress), string(p.PlayerAccountAddress), string(p.CobxTokenAccountAddress),
		string(p.PDAStatus), p.SessionIdentity, p.SessionPrivateKey, p.Experience, p.Level, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return profile.Profile{}, translateError(err)
	}
	return p, nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (profile.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+profileColumns+`
		FROM player_profiles
		WHERE user_id = $1
	`, userID)
	return scanProfile(row)
}

func (s *Store) GetProfileByWallet(ctx context.Context, wallet chain.Address) (profile.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+profileColumns+`
		FROM player_profiles
		WHERE wallet_address = $1
	`, string(wallet))
	return scanProfile(row)
}

func (s *Store) UpdateProfile(ctx context.Context, userID string, patch profile.Patch) (profile.Profile, error) {
	sets := []string{"updated_at = $2"}
	args := []interface{}{userID, time.Now().UTC()}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.WalletAddress != nil {
		add("wallet_address", nullable(string(*patch.WalletAddress)))
	}
	if patch.PlayerAccountAddress != nil {
		add("player_account_address", nullable(string(*patch.PlayerAccountAddress)))
	}
	if patch.CobxTokenAccountAddress != nil {
		add("cobx_token_account_address", nullable(string(*patch.CobxTokenAccountAddress)))
	}
	if patch.PDAStatus != nil {
		add("pda_status", string(*patch.PDAStatus))
	}
	if patch.SessionIdentity != nil {
		add("session_identity", nullable(*patch.SessionIdentity))
	}
	if patch.SessionPrivateKey != nil {
		add("session_private_key", nullable(*patch.SessionPrivateKey))
	}
	if patch.Experience != nil {
		add("experience", *patch.Experience)
	}
	if patch.Level != nil {
		add("level", *patch.Level)
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE player_profiles
		SET `+strings.Join(sets, ", ")+`
		WHERE user_id = $1
		RETURNING `+profileColumns+`
	`, args...)
	return scanProfile(row)
}

func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (profile.Profile, error) {
	var (
		p       profile.Profile
		wallet  sql.NullString
		player  sql.NullString
		token   sql.NullString
		sessID  sql.NullString
		sessKey sql.NullString
		status  string
	)

	err := row.Scan(&p.UserID, &wallet, &player, &token, &status,
		&sessID, &sessKey, &p.Experience, &p.Level, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return profile.Profile{}, translateError(err)
	}

	p.WalletAddress = chain.Address(wallet.String)
	p.PlayerAccountAddress = chain.Address(player.String)
	p.CobxTokenAccountAddress = chain.Address(token.String)
	p.PDAStatus = profile.PDAStatus(status)
	p.SessionIdentity = sessID.String
	p.SessionPrivateKey = sessKey.String
	return p, nil
}

// --- IntentStore ------------------------------------------------------------

const intentColumns = `id, user_id, player_address, token_address, state, tx_ref, detail, created_at, updated_at`

func (s *Store) CreateIntent(ctx context.Context, it provision.Intent) (provision.Intent, error) {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	it.CreatedAt = now
	it.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO provision_intents (`+intentColumns+`)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9)
	`, it.ID, it.UserID, string(it.PlayerAddress), string(it.TokenAddress),
		string(it.State), it.TxRef, it.Detail, it.CreatedAt, it.UpdatedAt)
	if err != nil {
		return provision.Intent{}, translateError(err)
	}
	return it, nil
}

func (s *Store) UpdateIntent(ctx context.Context, it provision.Intent) (provision.Intent, error) {
	it.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE provision_intents
		SET state = $2, tx_ref = NULLIF($3, ''), detail = NULLIF($4, ''), updated_at = $5
		WHERE id = $1
	`, it.ID, string(it.State), it.TxRef, it.Detail, it.UpdatedAt)
	if err != nil {
		return provision.Intent{}, translateError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return provision.Intent{}, storage.ErrNotFound
	}
	return it, nil
}

func (s *Store) GetIntent(ctx context.Context, userID string, player chain.Address) (provision.Intent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+intentColumns+`
		FROM provision_intents
		WHERE user_id = $1 AND player_address = $2
	`, userID, string(player))
	return scanIntent(row)
}

func (s *Store) ListIntents(ctx context.Context, userID string) ([]provision.Intent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+intentColumns+`
		FROM provision_intents
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	var out []provision.Intent
	for rows.Next() {
		it, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func scanIntent(row rowScanner) (provision.Intent, error) {
	var (
		it     provision.Intent
		player string
		token  string
		state  string
		txRef  sql.NullString
		detail sql.NullString
	)

	err := row.Scan(&it.ID, &it.UserID, &player, &token, &state, &txRef, &detail, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return provision.Intent{}, translateError(err)
	}

	it.PlayerAddress = chain.Address(player)
	it.TokenAddress = chain.Address(token)
	it.State = provision.IntentState(state)
	it.TxRef = txRef.String
	it.Detail = detail.String
	return it, nil
}
