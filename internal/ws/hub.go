package ws

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/communityhub/internal/auth"
	"github.com/communityhub/internal/logger"
	"github.com/communityhub/internal/model"
	"github.com/communityhub/internal/repository"
)

// Responder answers freshly posted channel messages. Handle returns the
// persisted reply and true when one should be broadcast. If nil, no
// automatic replies are produced.
type Responder interface {
	Handle(ctx context.Context, m *model.Message) (*model.Message, bool)
}

type Hub struct {
	registry *Registry

	// pending holds connections that have not presented credentials yet.
	pendingMu sync.Mutex
	pending   map[*Client]struct{}

	maxConns      int
	tokens        *auth.TokenManager
	userRepo      *repository.UserRepository
	communityRepo *repository.CommunityRepository
	channelRepo   *repository.ChannelRepository
	msgRepo       *repository.MessageRepository
	reactRepo     *repository.ReactionRepository
	dmRepo        *repository.DMRepository
	responder     Responder

	unregister chan *Client
	done       chan struct{}
}

func NewHub(
	tokens *auth.TokenManager,
	userRepo *repository.UserRepository,
	communityRepo *repository.CommunityRepository,
	channelRepo *repository.ChannelRepository,
	msgRepo *repository.MessageRepository,
	reactRepo *repository.ReactionRepository,
	dmRepo *repository.DMRepository,
	maxConns int,
	responder Responder,
) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		registry:      NewRegistry(),
		pending:       make(map[*Client]struct{}),
		maxConns:      maxConns,
		tokens:        tokens,
		userRepo:      userRepo,
		communityRepo: communityRepo,
		channelRepo:   channelRepo,
		msgRepo:       msgRepo,
		reactRepo:     reactRepo,
		dmRepo:        dmRepo,
		responder:     responder,
		unregister:    make(chan *Client, 64),
		done:          make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	h.pendingMu.Lock()
	all := make([]*Client, 0, len(h.pending))
	for c := range h.pending {
		all = append(all, c)
	}
	h.pending = make(map[*Client]struct{})
	h.pendingMu.Unlock()

	for _, c := range h.registry.AllClients() {
		all = append(all, c)
		h.registry.Remove(c)
	}

	// Close connections outside any lock (network I/O).
	for _, c := range all {
		c.Close()
	}
	for _, c := range all {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	if h.registry.Total()+h.pendingCount() >= h.maxConns {
		logger.Errorf("ws connection limit reached (%d), rejecting", h.maxConns)
		c.Close()
		return
	}
	if !c.Authed() {
		h.pendingMu.Lock()
		h.pending[c] = struct{}{}
		h.pendingMu.Unlock()
		return
	}
	h.attach(c)
}

func (h *Hub) pendingCount() int {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	return len(h.pending)
}

// attach registers an authenticated connection and flips the user online.
func (h *Hub) attach(c *Client) {
	h.registry.Add(c)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.userRepo.SetOnline(ctx, c.UserID(), true); err != nil {
		logger.Errorf("ws set online user=%s: %v", c.UserID(), err)
	}
}

func (h *Hub) removeClient(c *Client) {
	h.pendingMu.Lock()
	if _, ok := h.pending[c]; ok {
		delete(h.pending, c)
		h.pendingMu.Unlock()
		c.Close()
		return
	}
	h.pendingMu.Unlock()

	left, lastForUser := h.registry.Remove(c)

	// Network I/O outside the lock.
	c.Close()

	for _, ch := range left {
		h.BroadcastChannel(ch, OutgoingFrame{Type: EventPresenceUpdate, Payload: PresencePayload{
			ChannelID: ch,
			UserID:    c.UserID(),
			Username:  c.Username(),
			Online:    false,
		}})
	}
	if lastForUser && c.UserID() != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.userRepo.SetOnline(ctx, c.UserID(), false); err != nil {
			logger.Errorf("ws set offline user=%s: %v", c.UserID(), err)
		}
	}
}

// HandleFrame dispatches incoming WebSocket frames. Connections that have
// not authenticated may only send a join; their first frame being anything
// else ends the connection. Unknown types on authenticated connections get
// an error frame and the connection stays open.
func (h *Hub) HandleFrame(ctx context.Context, c *Client, frame IncomingFrame) {
	if !c.Authed() {
		if frame.Type != EventJoin {
			h.sendToClient(c, ErrorFrame("authentication required"))
			c.Close()
			return
		}
		h.handleJoin(ctx, c, frame)
		return
	}

	switch frame.Type {
	case EventJoin:
		// Already authenticated; re-joining is harmless.
		h.sendToClient(c, OutgoingFrame{Type: EventAuthSuccess, Payload: AuthSuccessPayload{
			UserID:   c.UserID(),
			Username: c.Username(),
		}})
	case EventJoinChannel:
		h.handleJoinChannel(ctx, c, frame)
	case EventLeaveChannel:
		h.handleLeaveChannel(ctx, c, frame)
	case EventSwitchChannel:
		h.handleSwitchChannel(ctx, c, frame)
	case EventSendMessage:
		h.handleSendMessage(ctx, c, frame)
	case EventMessage:
		h.handleLegacyMessage(ctx, c, frame)
	case EventEditMessage:
		h.handleEditMessage(ctx, c, frame)
	case EventDeleteMessage:
		h.handleDeleteMessage(ctx, c, frame)
	case EventAddReaction:
		h.handleAddReaction(ctx, c, frame)
	case EventRemoveReaction:
		h.handleRemoveReaction(ctx, c, frame)
	case EventTyping:
		h.handleTyping(ctx, c, frame)
	case EventSendDM:
		h.handleSendDM(ctx, c, frame)
	default:
		h.sendToClient(c, ErrorFrame("unknown frame type"))
	}
}

func (h *Hub) handleJoin(ctx context.Context, c *Client, frame IncomingFrame) {
	defer logger.DeferLogDuration("ws.handleJoin", time.Now())()
	if frame.Token == "" {
		h.sendToClient(c, ErrorFrame("token required"))
		c.Close()
		return
	}

	claims, err := h.tokens.Verify(frame.Token)
	if err != nil {
		h.sendToClient(c, ErrorFrame("invalid token"))
		c.Close()
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	user, err := h.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		h.sendToClient(c, ErrorFrame("invalid token"))
		c.Close()
		return
	}

	c.setIdentity(user.ID, user.Username)
	h.pendingMu.Lock()
	delete(h.pending, c)
	h.pendingMu.Unlock()
	h.attach(c)

	h.sendToClient(c, OutgoingFrame{Type: EventAuthSuccess, Payload: AuthSuccessPayload{
		UserID:   user.ID,
		Username: user.Username,
	}})

	// The join frame may name a channel to enter in the same step.
	if frame.ChannelID != "" {
		h.joinChannel(ctx, c, frame.ChannelID)
	}
}

// memberOf loads the channel and checks the client belongs to its
// community. On failure an error frame has already been sent.
func (h *Hub) memberOf(ctx context.Context, c *Client, channelID string) (*model.Channel, bool) {
	channel, err := h.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.sendToClient(c, ErrorFrame("channel not found"))
		} else {
			logger.Errorf("ws load channel %s: %v", channelID, err)
			h.sendToClient(c, ErrorFrame("internal error"))
		}
		return nil, false
	}
	_, err = h.communityRepo.GetMember(ctx, channel.CommunityID, c.UserID())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.sendToClient(c, ErrorFrame("not a member of this community"))
		} else {
			logger.Errorf("ws check membership channel=%s user=%s: %v", channelID, c.UserID(), err)
			h.sendToClient(c, ErrorFrame("internal error"))
		}
		return nil, false
	}
	return channel, true
}

func (h *Hub) handleJoinChannel(ctx context.Context, c *Client, frame IncomingFrame) {
	defer logger.DeferLogDuration("ws.handleJoinChannel", time.Now())()
	if frame.ChannelID == "" {
		h.sendToClient(c, ErrorFrame("channel_id required"))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	h.joinChannel(ctx, c, frame.ChannelID)
}

// joinChannel runs the membership check, registry join, history push and
// presence broadcast shared by join, join_channel and switch_channel.
func (h *Hub) joinChannel(ctx context.Context, c *Client, channelID string) {
	channel, ok := h.memberOf(ctx, c, channelID)
	if !ok {
		return
	}

	joined := h.registry.Join(channelID, c)
	h.sendToClient(c, OutgoingFrame{Type: EventJoinedChannel, Payload: JoinedChannelPayload{ChannelID: channelID}})
	h.pushHistory(ctx, c, channelID)
	if joined {
		h.broadcastPresence(channelID, c, true)
		h.markMemberSeen(ctx, channel.CommunityID, c)
	}
}

// markMemberSeen bumps the member's per-community presence and last-seen.
func (h *Hub) markMemberSeen(ctx context.Context, communityID string, c *Client) {
	if err := h.communityRepo.SetMemberOnline(ctx, communityID, c.UserID(), true); err != nil {
		logger.Errorf("ws mark member seen community=%s user=%s: %v", communityID, c.UserID(), err)
	}
}

func (h *Hub) handleLeaveChannel(ctx context.Context, c *Client, frame IncomingFrame) {
	if frame.ChannelID == "" {
		h.sendToClient(c, ErrorFrame("channel_id required"))
		return
	}
	if h.registry.Leave(frame.ChannelID, c) {
		h.sendToClient(c, OutgoingFrame{Type: EventLeftChannel, Payload: JoinedChannelPayload{ChannelID: frame.ChannelID}})
		h.broadcastPresence(frame.ChannelID, c, false)
	}
}

// handleSwitchChannel leaves every joined channel and joins exactly one,
// then pushes that channel's recent history.
func (h *Hub) handleSwitchChannel(ctx context.Context, c *Client, frame IncomingFrame) {
	defer logger.DeferLogDuration("ws.handleSwitchChannel", time.Now())()
	if frame.ChannelID == "" {
		h.sendToClient(c, ErrorFrame("channel_id required"))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	channel, ok := h.memberOf(ctx, c, frame.ChannelID)
	if !ok {
		return
	}

	// A target the connection was already in gets no offline broadcast,
	// and no online rebroadcast either: subscribers never saw it leave.
	already := false
	for _, ch := range h.registry.LeaveAll(c) {
		if ch == frame.ChannelID {
			already = true
			continue
		}
		h.broadcastPresence(ch, c, false)
	}
	joined := h.registry.Join(frame.ChannelID, c)
	h.sendToClient(c, OutgoingFrame{Type: EventJoinedChannel, Payload: JoinedChannelPayload{ChannelID: frame.ChannelID}})
	h.pushHistory(ctx, c, frame.ChannelID)
	if joined && !already {
		h.broadcastPresence(frame.ChannelID, c, true)
		h.markMemberSeen(ctx, channel.CommunityID, c)
	}
}

func (h *Hub) pushHistory(ctx context.Context, c *Client, channelID string) {
	messages, err := h.msgRepo.ChannelHistory(ctx, channelID, repository.DefaultHistoryLimit)
	if err != nil {
		logger.Errorf("ws load history channel=%s: %v", channelID, err)
		h.sendToClient(c, ErrorFrame("failed to load history"))
		return
	}
	h.sendToClient(c, OutgoingFrame{Type: EventHistory, Payload: HistoryPayload{
		ChannelID: channelID,
		Messages:  messages,
	}})
}

func (h *Hub) broadcastPresence(channelID string, c *Client, online bool) {
	frame := OutgoingFrame{Type: EventPresenceUpdate, Payload: PresencePayload{
		ChannelID: channelID,
		UserID:    c.UserID(),
		Username:  c.Username(),
		Online:    online,
	}}
	for _, target := range h.registry.ChannelClients(channelID) {
		if target != c {
			h.sendToClient(target, frame)
		}
	}
}

func (h *Hub) handleSendMessage(ctx context.Context, c *Client, frame IncomingFrame) {
	defer logger.DeferLogDuration("ws.handleSendMessage", time.Now())()
	if frame.ChannelID == "" {
		h.sendToClient(c, ErrorFrame("channel_id required"))
		return
	}
	content := strings.TrimSpace(frame.Content)
	if content == "" && len(frame.Attachments) == 0 {
		h.sendToClient(c, ErrorFrame("content required"))
		return
	}
	if len(content) > repository.MaxContentLen {
		h.sendToClient(c, ErrorFrame("message too long"))
		return
	}
	if !h.registry.InChannel(frame.ChannelID, c) {
		h.sendToClient(c, ErrorFrame("join the channel first"))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var replyToID *string
	if frame.ReplyToID != "" {
		replyToID = &frame.ReplyToID
	}
	m := &model.Message{
		ChannelID:   frame.ChannelID,
		UserID:      c.UserID(),
		Username:    c.Username(),
		Content:     content,
		ReplyToID:   replyToID,
		Attachments: frame.Attachments,
	}
	if err := h.msgRepo.Create(ctx, m); err != nil {
		switch {
		case errors.Is(err, repository.ErrChannelLocked):
			h.sendToClient(c, ErrorFrame("channel is locked"))
		case errors.Is(err, repository.ErrNotFound):
			h.sendToClient(c, ErrorFrame("channel not found"))
		default:
			logger.Errorf("ws save message channel=%s user=%s: %v", frame.ChannelID, c.UserID(), err)
			h.sendToClient(c, ErrorFrame("failed to save message"))
		}
		return
	}

	// Attach reply-to preview if present
	if replyToID != nil {
		if replyMsg, err := h.msgRepo.GetByID(ctx, *replyToID); err == nil {
			m.ReplyTo = &model.ReplyPreview{
				ID:       replyMsg.ID,
				Username: replyMsg.Username,
				Content:  replyMsg.Content,
			}
		}
	}

	h.BroadcastChannel(frame.ChannelID, OutgoingFrame{Type: EventNewMessage, Payload: m})

	if h.responder != nil {
		msg := m
		go func() {
			rctx, rcancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer rcancel()
			if reply, ok := h.responder.Handle(rctx, msg); ok {
				h.BroadcastChannel(reply.ChannelID, OutgoingFrame{Type: EventNewMessage, Payload: reply})
			}
		}()
	}
}

// handleLegacyMessage accepts a bare message frame without a channel_id.
// It is unambiguous only while the connection is joined to exactly one
// channel; otherwise the sender gets an error frame.
func (h *Hub) handleLegacyMessage(ctx context.Context, c *Client, frame IncomingFrame) {
	if frame.ChannelID == "" {
		chans := h.registry.ChannelsOf(c)
		if len(chans) != 1 {
			h.sendToClient(c, ErrorFrame("ambiguous channel, use send_message with channel_id"))
			return
		}
		frame.ChannelID = chans[0]
	}
	h.handleSendMessage(ctx, c, frame)
}

func (h *Hub) handleEditMessage(ctx context.Context, c *Client, frame IncomingFrame) {
	defer logger.DeferLogDuration("ws.handleEditMessage", time.Now())()
	if frame.MessageID == "" || strings.TrimSpace(frame.Content) == "" {
		h.sendToClient(c, ErrorFrame("message_id and content required"))
		return
	}
	content := strings.TrimSpace(frame.Content)
	if len(content) > repository.MaxContentLen {
		h.sendToClient(c, ErrorFrame("message too long"))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	m, err := h.msgRepo.UpdateContent(ctx, frame.MessageID, c.UserID(), content)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			h.sendToClient(c, ErrorFrame("message not found"))
		case errors.Is(err, repository.ErrForbidden):
			h.sendToClient(c, ErrorFrame("can only edit own messages"))
		default:
			logger.Errorf("ws edit message %s: %v", frame.MessageID, err)
			h.sendToClient(c, ErrorFrame("failed to edit"))
		}
		return
	}

	h.BroadcastChannel(m.ChannelID, OutgoingFrame{Type: EventMessageEdited, Payload: MessageEditedPayload{
		MessageID: m.ID,
		ChannelID: m.ChannelID,
		Content:   m.Content,
		EditedAt:  *m.EditedAt,
	}})
}

func (h *Hub) handleDeleteMessage(ctx context.Context, c *Client, frame IncomingFrame) {
	defer logger.DeferLogDuration("ws.handleDeleteMessage", time.Now())()
	if frame.MessageID == "" {
		h.sendToClient(c, ErrorFrame("message_id required"))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	m, err := h.msgRepo.Delete(ctx, frame.MessageID, c.UserID())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			h.sendToClient(c, ErrorFrame("message not found"))
		case errors.Is(err, repository.ErrForbidden):
			h.sendToClient(c, ErrorFrame("can only delete own messages"))
		default:
			logger.Errorf("ws delete message %s: %v", frame.MessageID, err)
			h.sendToClient(c, ErrorFrame("failed to delete"))
		}
		return
	}

	h.BroadcastChannel(m.ChannelID, OutgoingFrame{Type: EventMessageDeleted, Payload: MessageDeletedPayload{
		MessageID: m.ID,
		ChannelID: m.ChannelID,
	}})
}

func (h *Hub) handleAddReaction(ctx context.Context, c *Client, frame IncomingFrame) {
	if frame.MessageID == "" || frame.Emoji == "" {
		h.sendToClient(c, ErrorFrame("message_id and emoji required"))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	m, err := h.msgRepo.GetByID(ctx, frame.MessageID)
	if err != nil {
		h.sendToClient(c, ErrorFrame("message not found"))
		return
	}

	added, err := h.reactRepo.Add(ctx, &model.Reaction{
		MessageID: frame.MessageID,
		UserID:    c.UserID(),
		Username:  c.Username(),
		Emoji:     frame.Emoji,
	})
	if err != nil {
		logger.Errorf("ws add reaction %s: %v", frame.MessageID, err)
		return
	}
	if !added {
		return
	}

	h.BroadcastChannel(m.ChannelID, OutgoingFrame{Type: EventReactionAdded, Payload: ReactionPayload{
		MessageID: frame.MessageID,
		ChannelID: m.ChannelID,
		UserID:    c.UserID(),
		Username:  c.Username(),
		Emoji:     frame.Emoji,
	}})
}

func (h *Hub) handleRemoveReaction(ctx context.Context, c *Client, frame IncomingFrame) {
	if frame.MessageID == "" || frame.Emoji == "" {
		h.sendToClient(c, ErrorFrame("message_id and emoji required"))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	m, err := h.msgRepo.GetByID(ctx, frame.MessageID)
	if err != nil {
		h.sendToClient(c, ErrorFrame("message not found"))
		return
	}

	removed, err := h.reactRepo.Remove(ctx, frame.MessageID, c.UserID(), frame.Emoji)
	if err != nil {
		logger.Errorf("ws remove reaction %s: %v", frame.MessageID, err)
		return
	}
	if !removed {
		return
	}

	h.BroadcastChannel(m.ChannelID, OutgoingFrame{Type: EventReactionRemoved, Payload: ReactionPayload{
		MessageID: frame.MessageID,
		ChannelID: m.ChannelID,
		UserID:    c.UserID(),
		Username:  c.Username(),
		Emoji:     frame.Emoji,
	}})
}

func (h *Hub) handleTyping(ctx context.Context, c *Client, frame IncomingFrame) {
	if frame.ChannelID == "" || !h.registry.InChannel(frame.ChannelID, c) {
		return
	}
	out := OutgoingFrame{Type: EventTyping, Payload: TypingPayload{
		ChannelID: frame.ChannelID,
		UserID:    c.UserID(),
		Username:  c.Username(),
	}}
	for _, target := range h.registry.ChannelClients(frame.ChannelID) {
		if target != c {
			h.sendToClient(target, out)
		}
	}
}

func (h *Hub) handleSendDM(ctx context.Context, c *Client, frame IncomingFrame) {
	defer logger.DeferLogDuration("ws.handleSendDM", time.Now())()
	content := strings.TrimSpace(frame.Content)
	if frame.ConversationID == "" || content == "" {
		h.sendToClient(c, ErrorFrame("conversation_id and content required"))
		return
	}
	if len(content) > repository.MaxContentLen {
		h.sendToClient(c, ErrorFrame("message too long"))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conv, err := h.dmRepo.GetConversation(ctx, frame.ConversationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.sendToClient(c, ErrorFrame("conversation not found"))
		} else {
			logger.Errorf("ws load conversation %s: %v", frame.ConversationID, err)
			h.sendToClient(c, ErrorFrame("failed to send"))
		}
		return
	}
	if !conv.Has(c.UserID()) {
		h.sendToClient(c, ErrorFrame("not a participant"))
		return
	}

	dm := &model.DirectMessage{
		ConversationID: conv.ID,
		SenderID:       c.UserID(),
		SenderName:     c.Username(),
		Content:        content,
	}
	if err := h.dmRepo.CreateMessage(ctx, dm); err != nil {
		logger.Errorf("ws save dm conversation=%s: %v", conv.ID, err)
		h.sendToClient(c, ErrorFrame("failed to send"))
		return
	}

	out := OutgoingFrame{Type: EventNewDM, Payload: dm}
	h.SendUser(c.UserID(), out)
	if other := conv.Other(c.UserID()); other != c.UserID() {
		h.SendUser(other, out)
	}
}

// BroadcastChannel sends a frame to every connection joined to a channel.
func (h *Hub) BroadcastChannel(channelID string, frame OutgoingFrame) {
	for _, c := range h.registry.ChannelClients(channelID) {
		h.sendToClient(c, frame)
	}
}

// SendUser sends a frame to every connection of a user.
func (h *Hub) SendUser(userID string, frame OutgoingFrame) {
	for _, c := range h.registry.UserClients(userID) {
		h.sendToClient(c, frame)
	}
}

func (h *Hub) sendToClient(c *Client, frame OutgoingFrame) {
	select {
	case c.send <- frame:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow client user=%s", c.UserID())
		c.Close()
	}
}

// Register admits a connection synchronously, before its pumps start
// reading frames. By the time the first frame is handled the connection is
// already in the pending set or the registry, so a token join's attach and
// an early join_channel both see it.
func (h *Hub) Register(c *Client) {
	select {
	case <-h.done:
		c.Close()
		return
	default:
	}
	h.addClient(c)
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
