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

const conversationCols = `id, participant1_id, participant1_name, participant2_id, participant2_name, last_message_at, created_at`

type DMRepository struct {
	pool *pgxpool.Pool
}

func NewDMRepository(pool *pgxpool.Pool) *DMRepository {
	return &DMRepository{pool: pool}
}

func scanConversation(row pgx.Row) (*model.Conversation, error) {
	c := &model.Conversation{}
	err := row.Scan(&c.ID, &c.Participant1ID, &c.Participant1Name, &c.Participant2ID, &c.Participant2Name, &c.LastMessageAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetOrCreateConversation finds the conversation for the pair regardless of
// which side initiated it, creating one when none exists.
func (r *DMRepository) GetOrCreateConversation(ctx context.Context, aID, aName, bID, bName string) (*model.Conversation, error) {
	defer logger.DeferLogDuration("dm.GetOrCreateConversation", time.Now())()
	c, err := scanConversation(r.pool.QueryRow(ctx,
		`SELECT `+conversationCols+` FROM dm_conversations
		 WHERE (participant1_id = $1 AND participant2_id = $2)
		    OR (participant1_id = $2 AND participant2_id = $1)`, aID, bID))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("dmRepo.GetOrCreateConversation lookup: %w", err)
	}

	now := time.Now().UTC()
	c = &model.Conversation{
		ID:               uuid.New().String(),
		Participant1ID:   aID,
		Participant1Name: aName,
		Participant2ID:   bID,
		Participant2Name: bName,
		LastMessageAt:    now,
		CreatedAt:        now,
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO dm_conversations (`+conversationCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.Participant1ID, c.Participant1Name, c.Participant2ID, c.Participant2Name, c.LastMessageAt, c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("dmRepo.GetOrCreateConversation insert: %w", err)
	}
	return c, nil
}

func (r *DMRepository) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	defer logger.DeferLogDuration("dm.GetConversation", time.Now())()
	c, err := scanConversation(r.pool.QueryRow(ctx,
		`SELECT `+conversationCols+` FROM dm_conversations WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("dmRepo.GetConversation: %w", err)
	}
	return c, err
}

// CreateMessage stores a direct message and bumps the conversation's
// last_message_at so conversation lists sort by recency.
func (r *DMRepository) CreateMessage(ctx context.Context, dm *model.DirectMessage) error {
	defer logger.DeferLogDuration("dm.CreateMessage", time.Now())()
	if dm.ID == "" {
		dm.ID = uuid.New().String()
	}
	if dm.CreatedAt.IsZero() {
		dm.CreatedAt = time.Now().UTC()
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("dmRepo.CreateMessage begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO direct_messages (id, conversation_id, sender_id, sender_name, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		dm.ID, dm.ConversationID, dm.SenderID, dm.SenderName, dm.Content, dm.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("dmRepo.CreateMessage insert: %w", err)
	}
	_, err = tx.Exec(ctx,
		`UPDATE dm_conversations SET last_message_at = $1 WHERE id = $2`,
		dm.CreatedAt, dm.ConversationID,
	)
	if err != nil {
		return fmt.Errorf("dmRepo.CreateMessage bump: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("dmRepo.CreateMessage commit: %w", err)
	}
	return nil
}

// Messages returns the most recent limit direct messages in chronological
// order, same newest-first-then-reverse shape as channel history.
func (r *DMRepository) Messages(ctx context.Context, conversationID string, limit int) ([]model.DirectMessage, error) {
	defer logger.DeferLogDuration("dm.Messages", time.Now())()
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, conversation_id, sender_id, sender_name, content, created_at
		 FROM direct_messages
		 WHERE conversation_id = $1 ORDER BY created_at DESC LIMIT $2`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("dmRepo.Messages query: %w", err)
	}
	defer rows.Close()

	out := make([]model.DirectMessage, 0, limit)
	for rows.Next() {
		var dm model.DirectMessage
		if err := rows.Scan(&dm.ID, &dm.ConversationID, &dm.SenderID, &dm.SenderName, &dm.Content, &dm.CreatedAt); err != nil {
			return nil, fmt.Errorf("dmRepo.Messages scan: %w", err)
		}
		out = append(out, dm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dmRepo.Messages rows: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// UserConversations lists the user's conversations, most recent first.
func (r *DMRepository) UserConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	defer logger.DeferLogDuration("dm.UserConversations", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+conversationCols+` FROM dm_conversations
		 WHERE participant1_id = $1 OR participant2_id = $1
		 ORDER BY last_message_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("dmRepo.UserConversations query: %w", err)
	}
	defer rows.Close()

	out := make([]model.Conversation, 0, 8)
	for rows.Next() {
		var c model.Conversation
		if err := rows.Scan(&c.ID, &c.Participant1ID, &c.Participant1Name, &c.Participant2ID, &c.Participant2Name, &c.LastMessageAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("dmRepo.UserConversations scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dmRepo.UserConversations rows: %w", err)
	}
	return out, nil
}
