package services

import (
	"backend/lib/battles"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// BattleStore persists battle rows in Postgres. It is the durable side of the
// orchestrator; status written here is the source of truth.
type BattleStore struct {
	db *Database
}

func NewBattleStore(db *Database) *BattleStore {
	return &BattleStore{db: db}
}

const battleColumns = `id, category, challenger, opponent, status, duration,
	created_at, started_at, updated_at, config_json, result_json, winner_username`

func (store *BattleStore) Insert(ctx context.Context, battle *battles.Battle) error {
	battle_id, err := StringToUUID(battle.ID)
	if err != nil {
		return fmt.Errorf("invalid battle id %q: %w", battle.ID, err)
	}

	query_ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err = store.db.Pool.Exec(query_ctx,
		`INSERT INTO battles (id, category, challenger, opponent, status, duration, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		battle_id,
		string(battle.Category),
		battle.Challenger,
		battle.Opponent,
		string(battle.Status),
		battle.Duration,
		battle.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert battle: %w", err)
	}
	return nil
}

func (store *BattleStore) Update(ctx context.Context, battle *battles.Battle) error {
	battle_id, err := StringToUUID(battle.ID)
	if err != nil {
		return fmt.Errorf("invalid battle id %q: %w", battle.ID, err)
	}

	query_ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tag, err := store.db.Pool.Exec(query_ctx,
		`UPDATE battles
		 SET status = $2,
		     started_at = $3,
		     updated_at = $4,
		     config_json = $5,
		     result_json = $6,
		     winner_username = $7
		 WHERE id = $1`,
		battle_id,
		string(battle.Status),
		nullableTime(battle.StartedAt),
		nullableTime(battle.UpdatedAt),
		nullableText(battle.ConfigJSON),
		nullableText(battle.ResultJSON),
		nullableText(battle.WinnerUsername),
	)
	if err != nil {
		return fmt.Errorf("failed to update battle: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return battles.ErrBattleNotFound
	}
	return nil
}

func (store *BattleStore) Get(ctx context.Context, battle_id string) (*battles.Battle, error) {
	id, err := StringToUUID(battle_id)
	if err != nil {
		return nil, battles.ErrBattleNotFound
	}

	query_ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	row := store.db.Pool.QueryRow(query_ctx,
		`SELECT `+battleColumns+` FROM battles WHERE id = $1`, id)

	battle, err := scanBattle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, battles.ErrBattleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load battle: %w", err)
	}
	return battle, nil
}

// History lists a user's settled battles, most recent first.
func (store *BattleStore) History(ctx context.Context, username string, limit int) ([]*battles.Battle, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query_ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := store.db.Pool.Query(query_ctx,
		`SELECT `+battleColumns+`
		 FROM battles
		 WHERE (challenger = $1 OR opponent = $1)
		   AND status IN ('ENDED', 'CANCELED')
		 ORDER BY created_at DESC
		 LIMIT $2`,
		username, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query battle history: %w", err)
	}
	defer rows.Close()

	var history []*battles.Battle
	for rows.Next() {
		battle, err := scanBattle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan battle row: %w", err)
		}
		history = append(history, battle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read battle history: %w", err)
	}
	return history, nil
}

func scanBattle(row pgx.Row) (*battles.Battle, error) {
	var (
		battle          battles.Battle
		battle_id       pgtype.UUID
		category        string
		status          string
		started_at      pgtype.Timestamptz
		updated_at      pgtype.Timestamptz
		config_json     pgtype.Text
		result_json     pgtype.Text
		winner_username pgtype.Text
	)

	err := row.Scan(
		&battle_id,
		&category,
		&battle.Challenger,
		&battle.Opponent,
		&status,
		&battle.Duration,
		&battle.CreatedAt,
		&started_at,
		&updated_at,
		&config_json,
		&result_json,
		&winner_username,
	)
	if err != nil {
		return nil, err
	}

	battle.ID = UUIDToString(battle_id)
	battle.Category = battles.Category(category)
	battle.Status = battles.Status(status)
	if started_at.Valid {
		battle.StartedAt = started_at.Time
	}
	if updated_at.Valid {
		battle.UpdatedAt = updated_at.Time
	}
	battle.ConfigJSON = config_json.String
	battle.ResultJSON = result_json.String
	battle.WinnerUsername = winner_username.String
	return &battle, nil
}

func nullableTime(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: !t.IsZero()}
}

func nullableText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
