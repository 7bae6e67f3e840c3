package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/communityhub/internal/logger"
	"github.com/communityhub/internal/model"
)

const channelCols = `id, community_id, name, type, position, is_locked, description, created_at`

type ChannelRepository struct {
	pool *pgxpool.Pool
}

func NewChannelRepository(pool *pgxpool.Pool) *ChannelRepository {
	return &ChannelRepository{pool: pool}
}

func (r *ChannelRepository) Create(ctx context.Context, c *model.Channel) error {
	defer logger.DeferLogDuration("channel.Create", time.Now())()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Type == "" {
		c.Type = model.ChannelTypeChat
	}
	c.CreatedAt = time.Now().UTC()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO community_channels (`+channelCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.CommunityID, c.Name, c.Type, c.Position, c.IsLocked, c.Description, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("channelRepo.Create: %w", err)
	}
	return nil
}

func (r *ChannelRepository) GetByID(ctx context.Context, id string) (*model.Channel, error) {
	defer logger.DeferLogDuration("channel.GetByID", time.Now())()
	c := &model.Channel{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+channelCols+` FROM community_channels WHERE id = $1`, id,
	).Scan(&c.ID, &c.CommunityID, &c.Name, &c.Type, &c.Position, &c.IsLocked, &c.Description, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("channelRepo.GetByID: %w", err)
	}
	return c, nil
}

// ListByCommunity returns channels in their ordinal position.
func (r *ChannelRepository) ListByCommunity(ctx context.Context, communityID string) ([]model.Channel, error) {
	defer logger.DeferLogDuration("channel.ListByCommunity", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+channelCols+` FROM community_channels WHERE community_id = $1 ORDER BY position`, communityID)
	if err != nil {
		return nil, fmt.Errorf("channelRepo.ListByCommunity query: %w", err)
	}
	defer rows.Close()

	channels := make([]model.Channel, 0, 8)
	for rows.Next() {
		var c model.Channel
		if err := rows.Scan(&c.ID, &c.CommunityID, &c.Name, &c.Type, &c.Position, &c.IsLocked, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("channelRepo.ListByCommunity scan: %w", err)
		}
		channels = append(channels, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("channelRepo.ListByCommunity rows: %w", err)
	}
	return channels, nil
}
