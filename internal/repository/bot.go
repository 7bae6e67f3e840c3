package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/communityhub/internal/auth"
	"github.com/communityhub/internal/logger"
	"github.com/communityhub/internal/model"
)

const botCols = `id, community_id, name, description, api_key, is_active, created_at`

type BotRepository struct {
	pool *pgxpool.Pool
}

func NewBotRepository(pool *pgxpool.Pool) *BotRepository {
	return &BotRepository{pool: pool}
}

// Create registers a bot for a community and mints its API key. The key is
// returned once in the populated struct and only its row survives.
func (r *BotRepository) Create(ctx context.Context, b *model.Bot) error {
	defer logger.DeferLogDuration("bot.Create", time.Now())()
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.APIKey == "" {
		key, err := auth.NewBotKey()
		if err != nil {
			return fmt.Errorf("botRepo.Create key: %w", err)
		}
		b.APIKey = key
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	b.IsActive = true
	_, err := r.pool.Exec(ctx,
		`INSERT INTO community_bots (`+botCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.CommunityID, b.Name, b.Description, b.APIKey, b.IsActive, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("botRepo.Create: %w", err)
	}
	return nil
}

func scanBot(row pgx.Row) (*model.Bot, error) {
	b := &model.Bot{}
	err := row.Scan(&b.ID, &b.CommunityID, &b.Name, &b.Description, &b.APIKey, &b.IsActive, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GetByKey resolves a bot from its API key. Inactive bots resolve to
// ErrNotFound so revocation takes effect immediately.
func (r *BotRepository) GetByKey(ctx context.Context, apiKey string) (*model.Bot, error) {
	defer logger.DeferLogDuration("bot.GetByKey", time.Now())()
	b, err := scanBot(r.pool.QueryRow(ctx,
		`SELECT `+botCols+` FROM community_bots WHERE api_key = $1 AND is_active`, apiKey))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("botRepo.GetByKey: %w", err)
	}
	return b, err
}

func (r *BotRepository) GetByID(ctx context.Context, id string) (*model.Bot, error) {
	defer logger.DeferLogDuration("bot.GetByID", time.Now())()
	b, err := scanBot(r.pool.QueryRow(ctx,
		`SELECT `+botCols+` FROM community_bots WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("botRepo.GetByID: %w", err)
	}
	return b, err
}

func (r *BotRepository) ListByCommunity(ctx context.Context, communityID string) ([]model.Bot, error) {
	defer logger.DeferLogDuration("bot.ListByCommunity", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+botCols+` FROM community_bots WHERE community_id = $1 ORDER BY created_at`, communityID)
	if err != nil {
		return nil, fmt.Errorf("botRepo.ListByCommunity query: %w", err)
	}
	defer rows.Close()

	out := make([]model.Bot, 0, 4)
	for rows.Next() {
		var b model.Bot
		if err := rows.Scan(&b.ID, &b.CommunityID, &b.Name, &b.Description, &b.APIKey, &b.IsActive, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("botRepo.ListByCommunity scan: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("botRepo.ListByCommunity rows: %w", err)
	}
	return out, nil
}

// SetActive toggles a bot without deleting its record or key.
func (r *BotRepository) SetActive(ctx context.Context, id string, active bool) error {
	defer logger.DeferLogDuration("bot.SetActive", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE community_bots SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("botRepo.SetActive: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
