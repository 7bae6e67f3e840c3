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

// MaxContentLen caps message bodies; longer sends are rejected at the
// gateway before they reach the repository.
const MaxContentLen = 2000

// DefaultHistoryLimit is the history window pushed on channel switch and
// served by the history endpoints.
const DefaultHistoryLimit = 50

const messageCols = `id, channel_id, user_id, username, content, is_bot, reply_to_id, edited_at, created_at`

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// Create stores the message and its optional attachments. Locked channels
// reject member-authored sends; privileged roles and bots still post.
func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("msg.Create", time.Now())()

	var locked bool
	var communityID string
	err := r.pool.QueryRow(ctx,
		`SELECT is_locked, community_id FROM community_channels WHERE id = $1`, m.ChannelID,
	).Scan(&locked, &communityID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("msgRepo.Create channel: %w", err)
	}
	if locked && !m.IsBot {
		var role string
		err := r.pool.QueryRow(ctx,
			`SELECT role FROM community_members WHERE community_id = $1 AND user_id = $2`,
			communityID, m.UserID,
		).Scan(&role)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && !model.PrivilegedRole(role)) {
			return ErrChannelLocked
		}
		if err != nil {
			return fmt.Errorf("msgRepo.Create role: %w", err)
		}
	}

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("msgRepo.Create begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO community_messages (`+messageCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, $8)`,
		m.ID, m.ChannelID, m.UserID, m.Username, m.Content, m.IsBot, m.ReplyToID, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.Create insert: %w", err)
	}
	for i := range m.Attachments {
		a := &m.Attachments[i]
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		a.MessageID = m.ID
		_, err = tx.Exec(ctx,
			`INSERT INTO message_attachments (id, message_id, type, url, filename, size)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			a.ID, a.MessageID, a.Type, a.URL, a.Filename, a.Size,
		)
		if err != nil {
			return fmt.Errorf("msgRepo.Create attachment: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("msgRepo.Create commit: %w", err)
	}
	return nil
}

func scanMessage(row pgx.Row) (*model.Message, error) {
	m := &model.Message{}
	err := row.Scan(&m.ID, &m.ChannelID, &m.UserID, &m.Username, &m.Content, &m.IsBot, &m.ReplyToID, &m.EditedAt, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.GetByID", time.Now())()
	m, err := scanMessage(r.pool.QueryRow(ctx,
		`SELECT `+messageCols+` FROM community_messages WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("msgRepo.GetByID: %w", err)
	}
	return m, err
}

// ChannelMessages returns the most recent limit messages in chronological
// order: fetched newest-first, then reversed, so pagination windows stay
// stable under concurrent writes.
func (r *MessageRepository) ChannelMessages(ctx context.Context, channelID string, limit int) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.ChannelMessages", time.Now())()
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageCols+` FROM community_messages
		 WHERE channel_id = $1 ORDER BY created_at DESC LIMIT $2`, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.ChannelMessages query: %w", err)
	}
	defer rows.Close()

	messages, err := collectMessages(rows, "ChannelMessages")
	if err != nil {
		return nil, err
	}
	reverseMessages(messages)
	return messages, nil
}

func collectMessages(rows pgx.Rows, op string) ([]model.Message, error) {
	out := make([]model.Message, 0, DefaultHistoryLimit)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.UserID, &m.Username, &m.Content, &m.IsBot, &m.ReplyToID, &m.EditedAt, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("msgRepo.%s scan: %w", op, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.%s rows: %w", op, err)
	}
	return out, nil
}

func reverseMessages(ms []model.Message) {
	for i, j := 0, len(ms)-1; i < j; i, j = i+1, j-1 {
		ms[i], ms[j] = ms[j], ms[i]
	}
}

// ChannelHistory is ChannelMessages hydrated with attachments, grouped
// reactions and one-level reply previews.
func (r *MessageRepository) ChannelHistory(ctx context.Context, channelID string, limit int) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.ChannelHistory", time.Now())()
	messages, err := r.ChannelMessages(ctx, channelID, limit)
	if err != nil || len(messages) == 0 {
		return messages, err
	}

	ids := make([]string, len(messages))
	byID := make(map[string]*model.Message, len(messages))
	for i := range messages {
		ids[i] = messages[i].ID
		byID[messages[i].ID] = &messages[i]
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, message_id, type, url, filename, size
		 FROM message_attachments WHERE message_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.ChannelHistory attachments: %w", err)
	}
	for rows.Next() {
		var a model.Attachment
		if err := rows.Scan(&a.ID, &a.MessageID, &a.Type, &a.URL, &a.Filename, &a.Size); err != nil {
			rows.Close()
			return nil, fmt.Errorf("msgRepo.ChannelHistory attachment scan: %w", err)
		}
		if m := byID[a.MessageID]; m != nil {
			m.Attachments = append(m.Attachments, a)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.ChannelHistory attachment rows: %w", err)
	}

	rows, err = r.pool.Query(ctx,
		`SELECT message_id, user_id, username, emoji, created_at
		 FROM message_reactions WHERE message_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.ChannelHistory reactions: %w", err)
	}
	grouped := make(map[string]map[string]*model.ReactionGroup)
	for rows.Next() {
		var re model.Reaction
		if err := rows.Scan(&re.MessageID, &re.UserID, &re.Username, &re.Emoji, &re.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("msgRepo.ChannelHistory reaction scan: %w", err)
		}
		byEmoji, ok := grouped[re.MessageID]
		if !ok {
			byEmoji = make(map[string]*model.ReactionGroup)
			grouped[re.MessageID] = byEmoji
		}
		g, ok := byEmoji[re.Emoji]
		if !ok {
			g = &model.ReactionGroup{Emoji: re.Emoji}
			byEmoji[re.Emoji] = g
		}
		g.Count++
		g.Users = append(g.Users, re.Username)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.ChannelHistory reaction rows: %w", err)
	}
	for id, byEmoji := range grouped {
		m := byID[id]
		for _, g := range byEmoji {
			m.Reactions = append(m.Reactions, *g)
		}
	}

	replyIDs := make([]string, 0, 8)
	for i := range messages {
		if messages[i].ReplyToID != nil {
			replyIDs = append(replyIDs, *messages[i].ReplyToID)
		}
	}
	if len(replyIDs) > 0 {
		rows, err = r.pool.Query(ctx,
			`SELECT id, username, content FROM community_messages WHERE id = ANY($1)`, replyIDs)
		if err != nil {
			return nil, fmt.Errorf("msgRepo.ChannelHistory replies: %w", err)
		}
		previews := make(map[string]model.ReplyPreview, len(replyIDs))
		for rows.Next() {
			var p model.ReplyPreview
			if err := rows.Scan(&p.ID, &p.Username, &p.Content); err != nil {
				rows.Close()
				return nil, fmt.Errorf("msgRepo.ChannelHistory reply scan: %w", err)
			}
			previews[p.ID] = p
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("msgRepo.ChannelHistory reply rows: %w", err)
		}
		for i := range messages {
			if messages[i].ReplyToID != nil {
				if p, ok := previews[*messages[i].ReplyToID]; ok {
					preview := p
					messages[i].ReplyTo = &preview
				}
			}
		}
	}

	return messages, nil
}

// UpdateContent edits a message body. Only the original author may edit;
// anyone else gets ErrForbidden and nothing changes.
func (r *MessageRepository) UpdateContent(ctx context.Context, id, userID, content string) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.UpdateContent", time.Now())()
	m, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID {
		return nil, ErrForbidden
	}
	now := time.Now().UTC()
	_, err = r.pool.Exec(ctx,
		`UPDATE community_messages SET content = $1, edited_at = $2 WHERE id = $3`,
		content, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.UpdateContent: %w", err)
	}
	m.Content = content
	m.EditedAt = &now
	return m, nil
}

// Delete removes a message. Author-only, like UpdateContent.
func (r *MessageRepository) Delete(ctx context.Context, id, userID string) (*model.Message, error) {
	defer logger.DeferLogDuration("msg.Delete", time.Now())()
	m, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID {
		return nil, ErrForbidden
	}
	_, err = r.pool.Exec(ctx, `DELETE FROM community_messages WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.Delete: %w", err)
	}
	return m, nil
}

// Search matches channel messages by substring, newest first.
func (r *MessageRepository) Search(ctx context.Context, channelID, query string, limit int) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.Search", time.Now())()
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageCols+` FROM community_messages
		 WHERE channel_id = $1 AND content ILIKE '%' || $2 || '%'
		 ORDER BY created_at DESC LIMIT $3`, channelID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.Search query: %w", err)
	}
	defer rows.Close()
	return collectMessages(rows, "Search")
}
