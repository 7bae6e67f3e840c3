package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/communityhub/internal/auth"
	"github.com/communityhub/internal/logger"
	"github.com/communityhub/internal/model"
	"github.com/communityhub/internal/repository"
)

const (
	supportCommunityName = "Community Hub"
	supportChannelName   = "support"
	supportBotName       = "Support Bot"

	// apologyText is the fixed fallback when the answer service is down.
	apologyText = "Sorry, I'm having trouble answering right now. Please try again in a moment."

	// escalationMarker is appended to replies that matched an escalation
	// keyword so a human agent picks up the thread.
	escalationMarker = "A human support agent has been notified and will follow up here."
)

// MessageStore is the slice of the message repository the responder needs.
type MessageStore interface {
	Create(ctx context.Context, m *model.Message) error
}

// Responder watches the support channel and posts bot replies to user
// questions there.
type Responder struct {
	channelID string
	botID     string
	botName   string
	msgRepo   MessageStore
	answerer  Answerer
}

func NewResponder(channelID, botID, botName string, msgRepo MessageStore, answerer Answerer) *Responder {
	return &Responder{
		channelID: channelID,
		botID:     botID,
		botName:   botName,
		msgRepo:   msgRepo,
		answerer:  answerer,
	}
}

// Handle answers a message when it belongs to the support channel. Bot
// messages are skipped so the responder never answers itself. The reply
// is persisted before being returned for broadcast.
func (r *Responder) Handle(ctx context.Context, m *model.Message) (*model.Message, bool) {
	if m.ChannelID != r.channelID || m.IsBot || m.Content == "" {
		return nil, false
	}
	defer logger.DeferLogDuration("bot.Handle", time.Now())()

	answer, err := r.answerer.Answer(ctx, m.Content)
	if err != nil {
		logger.Errorf("support bot answer: %v", err)
		answer = apologyText
	}
	if NeedsEscalation(m.Content) {
		answer = answer + "\n\n" + escalationMarker
	}

	replyToID := m.ID
	reply := &model.Message{
		ChannelID: r.channelID,
		UserID:    r.botID,
		Username:  r.botName,
		Content:   answer,
		IsBot:     true,
		ReplyToID: &replyToID,
	}
	if err := r.msgRepo.Create(ctx, reply); err != nil {
		logger.Errorf("support bot save reply: %v", err)
		return nil, false
	}
	reply.ReplyTo = &model.ReplyPreview{ID: m.ID, Username: m.Username, Content: m.Content}
	return reply, true
}

// SupportSetup is the seeded support surface the responder operates on.
type SupportSetup struct {
	Community *model.Community
	Channel   *model.Channel
	Bot       *model.Bot
}

// EnsureSupport makes sure the support community, its channel and its bot
// exist, creating whatever is missing. Safe to run on every startup.
func EnsureSupport(
	ctx context.Context,
	userRepo *repository.UserRepository,
	communityRepo *repository.CommunityRepository,
	channelRepo *repository.ChannelRepository,
	botRepo *repository.BotRepository,
) (*SupportSetup, error) {
	owner, err := userRepo.GetByUsername(ctx, "support")
	if errors.Is(err, repository.ErrNotFound) {
		// System account that owns the support community. Its password is
		// random and never issued, so nobody can log in as it.
		secret, hashErr := auth.HashPassword(uuid.New().String() + "!A")
		if hashErr != nil {
			return nil, fmt.Errorf("bot.EnsureSupport hash: %w", hashErr)
		}
		portableID, idErr := auth.NewPortableID()
		if idErr != nil {
			return nil, fmt.Errorf("bot.EnsureSupport id: %w", idErr)
		}
		owner = &model.User{
			ID:           uuid.New().String(),
			Username:     "support",
			Email:        "support@communityhub.local",
			PasswordHash: secret,
			DisplayName:  "Support",
			Role:         model.RoleAdmin,
			PortableID:   portableID,
		}
		if err := userRepo.Create(ctx, owner); err != nil {
			return nil, fmt.Errorf("bot.EnsureSupport owner: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("bot.EnsureSupport owner lookup: %w", err)
	}

	community, err := communityRepo.GetByName(ctx, supportCommunityName)
	if errors.Is(err, repository.ErrNotFound) {
		community = &model.Community{
			Name:        supportCommunityName,
			Description: "Official community: announcements and support",
			OwnerID:     owner.ID,
			IsPublic:    true,
		}
		if err := communityRepo.Create(ctx, community, owner.Username); err != nil {
			return nil, fmt.Errorf("bot.EnsureSupport community: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("bot.EnsureSupport community lookup: %w", err)
	}

	channels, err := channelRepo.ListByCommunity(ctx, community.ID)
	if err != nil {
		return nil, fmt.Errorf("bot.EnsureSupport channels: %w", err)
	}
	var channel *model.Channel
	for i := range channels {
		if channels[i].Name == supportChannelName {
			channel = &channels[i]
			break
		}
	}
	if channel == nil {
		channel = &model.Channel{
			CommunityID: community.ID,
			Name:        supportChannelName,
			Type:        model.ChannelTypeChat,
			Position:    len(channels),
		}
		if err := channelRepo.Create(ctx, channel); err != nil {
			return nil, fmt.Errorf("bot.EnsureSupport channel: %w", err)
		}
	}

	bots, err := botRepo.ListByCommunity(ctx, community.ID)
	if err != nil {
		return nil, fmt.Errorf("bot.EnsureSupport bots: %w", err)
	}
	var b *model.Bot
	for i := range bots {
		if bots[i].Name == supportBotName {
			b = &bots[i]
			break
		}
	}
	if b == nil {
		b = &model.Bot{
			CommunityID: community.ID,
			Name:        supportBotName,
			Description: "Answers questions in #" + supportChannelName,
		}
		if err := botRepo.Create(ctx, b); err != nil {
			return nil, fmt.Errorf("bot.EnsureSupport bot: %w", err)
		}
	}

	return &SupportSetup{Community: community, Channel: channel, Bot: b}, nil
}
