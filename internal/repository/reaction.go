package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/communityhub/internal/logger"
	"github.com/communityhub/internal/model"
)

type ReactionRepository struct {
	pool *pgxpool.Pool
}

func NewReactionRepository(pool *pgxpool.Pool) *ReactionRepository {
	return &ReactionRepository{pool: pool}
}

// Add records a reaction. Re-reacting with the same emoji is a no-op;
// added reports whether a new row was written so callers can skip the
// broadcast on duplicates.
func (r *ReactionRepository) Add(ctx context.Context, re *model.Reaction) (added bool, err error) {
	defer logger.DeferLogDuration("reaction.Add", time.Now())()
	if re.CreatedAt.IsZero() {
		re.CreatedAt = time.Now().UTC()
	}
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO message_reactions (message_id, user_id, username, emoji, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (message_id, user_id, emoji) DO NOTHING`,
		re.MessageID, re.UserID, re.Username, re.Emoji, re.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("reactionRepo.Add: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Remove deletes the caller's own reaction. Removing a reaction that is
// not there reports removed=false without error.
func (r *ReactionRepository) Remove(ctx context.Context, messageID, userID, emoji string) (removed bool, err error) {
	defer logger.DeferLogDuration("reaction.Remove", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM message_reactions WHERE message_id = $1 AND user_id = $2 AND emoji = $3`,
		messageID, userID, emoji,
	)
	if err != nil {
		return false, fmt.Errorf("reactionRepo.Remove: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ByMessage lists raw reaction rows for a single message.
func (r *ReactionRepository) ByMessage(ctx context.Context, messageID string) ([]model.Reaction, error) {
	defer logger.DeferLogDuration("reaction.ByMessage", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT message_id, user_id, username, emoji, created_at
		 FROM message_reactions WHERE message_id = $1 ORDER BY created_at`, messageID)
	if err != nil {
		return nil, fmt.Errorf("reactionRepo.ByMessage query: %w", err)
	}
	defer rows.Close()

	out := make([]model.Reaction, 0, 8)
	for rows.Next() {
		var re model.Reaction
		if err := rows.Scan(&re.MessageID, &re.UserID, &re.Username, &re.Emoji, &re.CreatedAt); err != nil {
			return nil, fmt.Errorf("reactionRepo.ByMessage scan: %w", err)
		}
		out = append(out, re)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reactionRepo.ByMessage rows: %w", err)
	}
	return out, nil
}
