package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/communityhub/internal/logger"
	"github.com/communityhub/internal/model"
)

// ErrPollEnded rejects votes cast after the poll's deadline.
var ErrPollEnded = errors.New("poll has ended")

// ErrBadOption rejects votes for an option index outside the poll.
var ErrBadOption = errors.New("invalid poll option")

type PollRepository struct {
	pool *pgxpool.Pool
}

func NewPollRepository(pool *pgxpool.Pool) *PollRepository {
	return &PollRepository{pool: pool}
}

func (r *PollRepository) Create(ctx context.Context, p *model.Poll) error {
	defer logger.DeferLogDuration("poll.Create", time.Now())()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	opts, err := json.Marshal(p.Options)
	if err != nil {
		return fmt.Errorf("pollRepo.Create marshal: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO community_polls (id, channel_id, creator_id, creator_name, question, options, allow_multiple, ends_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.ChannelID, p.CreatorID, p.CreatorName, p.Question, string(opts), p.AllowMultiple, p.EndsAt, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("pollRepo.Create: %w", err)
	}
	return nil
}

func scanPoll(row pgx.Row) (*model.Poll, error) {
	p := &model.Poll{}
	var opts string
	err := row.Scan(&p.ID, &p.ChannelID, &p.CreatorID, &p.CreatorName, &p.Question, &opts, &p.AllowMultiple, &p.EndsAt, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(opts), &p.Options); err != nil {
		return nil, fmt.Errorf("options unmarshal: %w", err)
	}
	return p, nil
}

func (r *PollRepository) GetByID(ctx context.Context, id string) (*model.Poll, error) {
	defer logger.DeferLogDuration("poll.GetByID", time.Now())()
	p, err := scanPoll(r.pool.QueryRow(ctx,
		`SELECT id, channel_id, creator_id, creator_name, question, options, allow_multiple, ends_at, created_at
		 FROM community_polls WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("pollRepo.GetByID: %w", err)
	}
	return p, err
}

// Vote records a ballot. Single-choice polls retract the voter's previous
// choice first so exactly one row remains; multi-choice polls treat a
// repeat vote for the same option as a no-op.
func (r *PollRepository) Vote(ctx context.Context, pollID, userID string, optionIndex int) error {
	defer logger.DeferLogDuration("poll.Vote", time.Now())()
	p, err := r.GetByID(ctx, pollID)
	if err != nil {
		return err
	}
	if p.EndsAt != nil && time.Now().After(*p.EndsAt) {
		return ErrPollEnded
	}
	if optionIndex < 0 || optionIndex >= len(p.Options) {
		return ErrBadOption
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pollRepo.Vote begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if !p.AllowMultiple {
		_, err = tx.Exec(ctx,
			`DELETE FROM poll_votes WHERE poll_id = $1 AND user_id = $2`, pollID, userID)
		if err != nil {
			return fmt.Errorf("pollRepo.Vote retract: %w", err)
		}
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO poll_votes (poll_id, user_id, option_index, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (poll_id, user_id, option_index) DO NOTHING`,
		pollID, userID, optionIndex, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("pollRepo.Vote insert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pollRepo.Vote commit: %w", err)
	}
	return nil
}

// ChannelPolls lists a channel's polls newest first with votes attached.
func (r *PollRepository) ChannelPolls(ctx context.Context, channelID string) ([]model.Poll, error) {
	defer logger.DeferLogDuration("poll.ChannelPolls", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, channel_id, creator_id, creator_name, question, options, allow_multiple, ends_at, created_at
		 FROM community_polls WHERE channel_id = $1 ORDER BY created_at DESC`, channelID)
	if err != nil {
		return nil, fmt.Errorf("pollRepo.ChannelPolls query: %w", err)
	}
	polls := make([]model.Poll, 0, 8)
	for rows.Next() {
		var p model.Poll
		var opts string
		if err := rows.Scan(&p.ID, &p.ChannelID, &p.CreatorID, &p.CreatorName, &p.Question, &opts, &p.AllowMultiple, &p.EndsAt, &p.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("pollRepo.ChannelPolls scan: %w", err)
		}
		if err := json.Unmarshal([]byte(opts), &p.Options); err != nil {
			rows.Close()
			return nil, fmt.Errorf("pollRepo.ChannelPolls options: %w", err)
		}
		polls = append(polls, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pollRepo.ChannelPolls rows: %w", err)
	}
	if len(polls) == 0 {
		return polls, nil
	}

	ids := make([]string, len(polls))
	byID := make(map[string]*model.Poll, len(polls))
	for i := range polls {
		ids[i] = polls[i].ID
		byID[polls[i].ID] = &polls[i]
	}
	rows, err = r.pool.Query(ctx,
		`SELECT poll_id, user_id, option_index, created_at
		 FROM poll_votes WHERE poll_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("pollRepo.ChannelPolls votes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v model.PollVote
		if err := rows.Scan(&v.PollID, &v.UserID, &v.OptionIndex, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("pollRepo.ChannelPolls vote scan: %w", err)
		}
		if p := byID[v.PollID]; p != nil {
			p.Votes = append(p.Votes, v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pollRepo.ChannelPolls vote rows: %w", err)
	}
	return polls, nil
}
