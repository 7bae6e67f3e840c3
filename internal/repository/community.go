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

type CommunityRepository struct {
	pool *pgxpool.Pool
}

func NewCommunityRepository(pool *pgxpool.Pool) *CommunityRepository {
	return &CommunityRepository{pool: pool}
}

// Create inserts the community together with its two default channels and
// the owner's membership as one transaction. A community never exists with
// zero channels or zero members.
func (r *CommunityRepository) Create(ctx context.Context, c *model.Community, ownerName string) error {
	defer logger.DeferLogDuration("community.Create", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("communityRepo.Create begin: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.MemberCount = 1
	c.CreatedAt = now
	_, err = tx.Exec(ctx,
		`INSERT INTO communities (id, name, description, icon, owner_id, is_verified, is_public, member_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.Name, c.Description, c.Icon, c.OwnerID, c.IsVerified, c.IsPublic, c.MemberCount, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("communityRepo.Create insert: %w", err)
	}

	defaults := []struct {
		name   string
		typ    model.ChannelType
		pos    int
		locked bool
	}{
		{"general", model.ChannelTypeChat, 0, false},
		{"announcements", model.ChannelTypeAnnouncement, 1, true},
	}
	for _, d := range defaults {
		_, err = tx.Exec(ctx,
			`INSERT INTO community_channels (id, community_id, name, type, position, is_locked, description, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, '', $7)`,
			uuid.New().String(), c.ID, d.name, d.typ, d.pos, d.locked, now,
		)
		if err != nil {
			return fmt.Errorf("communityRepo.Create channel %s: %w", d.name, err)
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO community_members (community_id, user_id, username, role, joined_at, last_seen_at)
		 VALUES ($1, $2, $3, $4, $5, $5)`,
		c.ID, c.OwnerID, ownerName, model.RoleOwner, now,
	)
	if err != nil {
		return fmt.Errorf("communityRepo.Create owner member: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("communityRepo.Create commit: %w", err)
	}
	return nil
}

const communityCols = `id, name, description, icon, owner_id, is_verified, is_public, member_count, created_at`

func scanCommunity(row pgx.Row) (*model.Community, error) {
	c := &model.Community{}
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &c.OwnerID, &c.IsVerified, &c.IsPublic, &c.MemberCount, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CommunityRepository) GetByID(ctx context.Context, id string) (*model.Community, error) {
	defer logger.DeferLogDuration("community.GetByID", time.Now())()
	c, err := scanCommunity(r.pool.QueryRow(ctx, `SELECT `+communityCols+` FROM communities WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("communityRepo.GetByID: %w", err)
	}
	return c, err
}

func (r *CommunityRepository) GetByName(ctx context.Context, name string) (*model.Community, error) {
	defer logger.DeferLogDuration("community.GetByName", time.Now())()
	c, err := scanCommunity(r.pool.QueryRow(ctx, `SELECT `+communityCols+` FROM communities WHERE name = $1`, name))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("communityRepo.GetByName: %w", err)
	}
	return c, err
}

// ListPublic returns public communities, newest first.
func (r *CommunityRepository) ListPublic(ctx context.Context) ([]model.Community, error) {
	defer logger.DeferLogDuration("community.ListPublic", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+communityCols+` FROM communities WHERE is_public = true ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("communityRepo.ListPublic query: %w", err)
	}
	defer rows.Close()
	return collectCommunities(rows, "ListPublic")
}

// ListForUser returns the communities userID is a member of.
func (r *CommunityRepository) ListForUser(ctx context.Context, userID string) ([]model.Community, error) {
	defer logger.DeferLogDuration("community.ListForUser", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT c.id, c.name, c.description, c.icon, c.owner_id, c.is_verified, c.is_public, c.member_count, c.created_at
		 FROM communities c
		 JOIN community_members m ON m.community_id = c.id
		 WHERE m.user_id = $1
		 ORDER BY c.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("communityRepo.ListForUser query: %w", err)
	}
	defer rows.Close()
	return collectCommunities(rows, "ListForUser")
}

func collectCommunities(rows pgx.Rows, op string) ([]model.Community, error) {
	out := make([]model.Community, 0, 16)
	for rows.Next() {
		var c model.Community
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &c.OwnerID, &c.IsVerified, &c.IsPublic, &c.MemberCount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("communityRepo.%s scan: %w", op, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("communityRepo.%s rows: %w", op, err)
	}
	return out, nil
}

// Join is idempotent: an existing membership is returned unchanged and the
// member counter is only incremented on a real insert.
func (r *CommunityRepository) Join(ctx context.Context, communityID, userID, username string) (*model.Member, error) {
	defer logger.DeferLogDuration("community.Join", time.Now())()
	if existing, err := r.GetMember(ctx, communityID, userID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("communityRepo.Join begin: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	m := &model.Member{
		CommunityID: communityID,
		UserID:      userID,
		Username:    username,
		Role:        model.RoleMember,
		LastSeenAt:  now,
		JoinedAt:    now,
	}
	tag, err := tx.Exec(ctx,
		`INSERT INTO community_members (community_id, user_id, username, role, joined_at, last_seen_at)
		 VALUES ($1, $2, $3, $4, $5, $5) ON CONFLICT DO NOTHING`,
		communityID, userID, username, m.Role, now,
	)
	if err != nil {
		return nil, fmt.Errorf("communityRepo.Join insert: %w", err)
	}
	if tag.RowsAffected() > 0 {
		_, err = tx.Exec(ctx,
			`UPDATE communities SET member_count = member_count + 1 WHERE id = $1`, communityID)
		if err != nil {
			return nil, fmt.Errorf("communityRepo.Join counter: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("communityRepo.Join commit: %w", err)
	}
	return m, nil
}

// Leave removes the membership and decrements the counter, never below zero.
func (r *CommunityRepository) Leave(ctx context.Context, communityID, userID string) (bool, error) {
	defer logger.DeferLogDuration("community.Leave", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("communityRepo.Leave begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM community_members WHERE community_id = $1 AND user_id = $2`,
		communityID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("communityRepo.Leave delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}
	_, err = tx.Exec(ctx,
		`UPDATE communities SET member_count = GREATEST(member_count - 1, 0) WHERE id = $1`, communityID)
	if err != nil {
		return false, fmt.Errorf("communityRepo.Leave counter: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("communityRepo.Leave commit: %w", err)
	}
	return true, nil
}

func (r *CommunityRepository) GetMember(ctx context.Context, communityID, userID string) (*model.Member, error) {
	defer logger.DeferLogDuration("community.GetMember", time.Now())()
	m := &model.Member{}
	err := r.pool.QueryRow(ctx,
		`SELECT community_id, user_id, username, role, is_online, last_seen_at, joined_at
		 FROM community_members WHERE community_id = $1 AND user_id = $2`,
		communityID, userID,
	).Scan(&m.CommunityID, &m.UserID, &m.Username, &m.Role, &m.IsOnline, &m.LastSeenAt, &m.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("communityRepo.GetMember: %w", err)
	}
	return m, nil
}

func (r *CommunityRepository) GetMembers(ctx context.Context, communityID string) ([]model.Member, error) {
	defer logger.DeferLogDuration("community.GetMembers", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT community_id, user_id, username, role, is_online, last_seen_at, joined_at
		 FROM community_members WHERE community_id = $1 ORDER BY joined_at`, communityID)
	if err != nil {
		return nil, fmt.Errorf("communityRepo.GetMembers query: %w", err)
	}
	defer rows.Close()

	members := make([]model.Member, 0, 16)
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(&m.CommunityID, &m.UserID, &m.Username, &m.Role, &m.IsOnline, &m.LastSeenAt, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("communityRepo.GetMembers scan: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("communityRepo.GetMembers rows: %w", err)
	}
	return members, nil
}

func (r *CommunityRepository) SetMemberOnline(ctx context.Context, communityID, userID string, online bool) error {
	defer logger.DeferLogDuration("community.SetMemberOnline", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE community_members SET is_online = $1, last_seen_at = $2
		 WHERE community_id = $3 AND user_id = $4`,
		online, time.Now().UTC(), communityID, userID,
	)
	if err != nil {
		return fmt.Errorf("communityRepo.SetMemberOnline: %w", err)
	}
	return nil
}

// HasPermission reports whether userID may perform permission in the
// community. Privileged roles pass everything; plain members only read/write.
func (r *CommunityRepository) HasPermission(ctx context.Context, communityID, userID, permission string) (bool, error) {
	m, err := r.GetMember(ctx, communityID, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if model.PrivilegedRole(m.Role) {
		return true, nil
	}
	return permission == "read" || permission == "write", nil
}
