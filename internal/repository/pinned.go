package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/communityhub/internal/logger"
	"github.com/communityhub/internal/model"
)

type PinnedRepository struct {
	pool *pgxpool.Pool
}

func NewPinnedRepository(pool *pgxpool.Pool) *PinnedRepository {
	return &PinnedRepository{pool: pool}
}

// Pin marks a message as pinned in its channel. Pinning an already pinned
// message is a no-op; pinned reports whether a new row was written.
func (r *PinnedRepository) Pin(ctx context.Context, messageID, pinnedByID string) (pinned bool, err error) {
	defer logger.DeferLogDuration("pinned.Pin", time.Now())()

	var channelID string
	err = r.pool.QueryRow(ctx,
		`SELECT channel_id FROM community_messages WHERE id = $1`, messageID,
	).Scan(&channelID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("pinnedRepo.Pin lookup: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`INSERT INTO pinned_messages (message_id, channel_id, pinned_by_id, pinned_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (message_id) DO NOTHING`,
		messageID, channelID, pinnedByID, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("pinnedRepo.Pin insert: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Unpin removes the pin. Unpinning a message that is not pinned reports
// removed=false without error.
func (r *PinnedRepository) Unpin(ctx context.Context, messageID string) (removed bool, err error) {
	defer logger.DeferLogDuration("pinned.Unpin", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM pinned_messages WHERE message_id = $1`, messageID)
	if err != nil {
		return false, fmt.Errorf("pinnedRepo.Unpin: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListByChannel returns the channel's pins newest-pin-first, each with the
// underlying message attached.
func (r *PinnedRepository) ListByChannel(ctx context.Context, channelID string) ([]model.PinnedMessage, error) {
	defer logger.DeferLogDuration("pinned.ListByChannel", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT p.message_id, p.channel_id, p.pinned_by_id, p.pinned_at,
		        m.id, m.channel_id, m.user_id, m.username, m.content, m.is_bot, m.reply_to_id, m.edited_at, m.created_at
		 FROM pinned_messages p
		 JOIN community_messages m ON m.id = p.message_id
		 WHERE p.channel_id = $1
		 ORDER BY p.pinned_at DESC`, channelID)
	if err != nil {
		return nil, fmt.Errorf("pinnedRepo.ListByChannel query: %w", err)
	}
	defer rows.Close()

	out := make([]model.PinnedMessage, 0, 8)
	for rows.Next() {
		var p model.PinnedMessage
		var m model.Message
		err := rows.Scan(&p.MessageID, &p.ChannelID, &p.PinnedByID, &p.PinnedAt,
			&m.ID, &m.ChannelID, &m.UserID, &m.Username, &m.Content, &m.IsBot, &m.ReplyToID, &m.EditedAt, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("pinnedRepo.ListByChannel scan: %w", err)
		}
		p.Message = &m
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pinnedRepo.ListByChannel rows: %w", err)
	}
	return out, nil
}
