package ws

import "sync"

// Registry tracks which connections are joined to which channels and which
// connections belong to which user. It holds no network state: callers do
// I/O outside its lock.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]map[*Client]struct{}
	users    map[string]map[*Client]struct{}
	byClient map[*Client]map[string]struct{}
	total    int
}

func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]map[*Client]struct{}),
		users:    make(map[string]map[*Client]struct{}),
		byClient: make(map[*Client]map[string]struct{}),
	}
}

// Add registers an authenticated connection under its user. Adding a
// connection that is already registered is a no-op.
func (r *Registry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byClient[c]; ok {
		return
	}
	uid := c.UserID()
	if _, ok := r.users[uid]; !ok {
		r.users[uid] = make(map[*Client]struct{})
	}
	r.users[uid][c] = struct{}{}
	r.byClient[c] = make(map[string]struct{})
	r.total++
}

// Remove drops the connection from its user and from every channel it had
// joined. It returns the channels left and whether this was the user's
// last connection.
func (r *Registry) Remove(c *Client) (left []string, lastForUser bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chans, ok := r.byClient[c]
	if !ok {
		return nil, false
	}
	for ch := range chans {
		r.leaveLocked(ch, c)
		left = append(left, ch)
	}
	delete(r.byClient, c)

	uid := c.UserID()
	if set, ok := r.users[uid]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(r.users, uid)
			lastForUser = true
		}
	}
	r.total--
	return left, lastForUser
}

// Join adds the connection to a channel. Joining twice is a no-op; joined
// reports whether membership actually changed.
func (r *Registry) Join(channelID string, c *Client) (joined bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chans, ok := r.byClient[c]
	if !ok {
		return false
	}
	if _, ok := chans[channelID]; ok {
		return false
	}
	chans[channelID] = struct{}{}
	if _, ok := r.channels[channelID]; !ok {
		r.channels[channelID] = make(map[*Client]struct{})
	}
	r.channels[channelID][c] = struct{}{}
	return true
}

// Leave removes the connection from a channel.
func (r *Registry) Leave(channelID string, c *Client) (leftSet bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chans, ok := r.byClient[c]
	if !ok {
		return false
	}
	if _, ok := chans[channelID]; !ok {
		return false
	}
	delete(chans, channelID)
	r.leaveLocked(channelID, c)
	return true
}

// LeaveAll removes the connection from every channel and returns them.
func (r *Registry) LeaveAll(c *Client) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	chans, ok := r.byClient[c]
	if !ok || len(chans) == 0 {
		return nil
	}
	left := make([]string, 0, len(chans))
	for ch := range chans {
		r.leaveLocked(ch, c)
		left = append(left, ch)
	}
	r.byClient[c] = make(map[string]struct{})
	return left
}

// leaveLocked prunes empty channel sets so the channel map does not grow
// without bound. Caller holds r.mu.
func (r *Registry) leaveLocked(channelID string, c *Client) {
	set, ok := r.channels[channelID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.channels, channelID)
	}
}

// ChannelsOf returns the channels this connection is joined to.
func (r *Registry) ChannelsOf(c *Client) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chans := r.byClient[c]
	out := make([]string, 0, len(chans))
	for ch := range chans {
		out = append(out, ch)
	}
	return out
}

// InChannel reports whether the connection is joined to the channel.
func (r *Registry) InChannel(channelID string, c *Client) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byClient[c][channelID]
	return ok
}

// ChannelClients snapshots the connections joined to a channel.
func (r *Registry) ChannelClients(channelID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.channels[channelID]
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// UserClients snapshots the user's connections across devices.
func (r *Registry) UserClients(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.users[userID]
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// UserOnline reports whether the user has at least one live connection.
func (r *Registry) UserOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// AllClients snapshots every registered connection.
func (r *Registry) AllClients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, r.total)
	for c := range r.byClient {
		out = append(out, c)
	}
	return out
}

// Total is the number of registered connections.
func (r *Registry) Total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}
