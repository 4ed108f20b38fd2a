package main

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Role marks a member can hold in a channel (spec §3 Channel, Glossary).
const (
	roleOperator = '@'
	roleHalfop   = '%'
	roleVoice    = '+'
)

// ChannelMeta is the cached schema-level aggregate metadata fetched on
// first join of a new schema channel (spec §4.4).
type ChannelMeta struct {
	RecordCount int64
	MinCreated  time.Time
	MaxCreated  time.Time
	MaxUpdated  time.Time
}

// Channel is one `#name` within a Tenant (spec §3 Channel).
//
// Grounded on the newest-generation channel.go (`Channel{Name, Members,
// Topic, TS}`), which was too minimal for the spec's role marks, modes,
// key, and cached metadata -- those fields and the permission predicates
// below are new, but the "members as a set behind a mutex, garbage
// collected when empty" shape is kept.
type Channel struct {
	mu sync.RWMutex

	Tenant *Tenant
	Name   string
	Schema string

	// RecordID is non-empty for single-record channels (`#schema/id`).
	RecordID string

	Members map[*User]map[byte]struct{}

	Topic      string
	TopicSetBy string
	TopicSetAt time.Time

	Modes map[byte]struct{}
	Key   string

	CreatedAt time.Time
	CreatedBy string

	Meta *ChannelMeta
}

func newChannel(t *Tenant, parsed parsedChannelName, createdBy string) *Channel {
	return &Channel{
		Tenant:    t,
		Name:      parsed.Raw,
		Schema:    parsed.Schema,
		RecordID:  parsed.RecordID,
		Members:   make(map[*User]map[byte]struct{}),
		Modes:     make(map[byte]struct{}),
		CreatedAt: time.Now(),
		CreatedBy: createdBy,
	}
}

func (c *Channel) isRecordChannel() bool { return c.RecordID != "" }

func (c *Channel) hasMode(m byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.Modes[m]
	return ok
}

func (c *Channel) setMode(m byte, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.Modes[m] = struct{}{}
	} else {
		delete(c.Modes, m)
	}
}

func (c *Channel) modesString() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var b strings.Builder
	b.WriteByte('+')
	modes := make([]byte, 0, len(c.Modes))
	for m := range c.Modes {
		modes = append(modes, m)
	}
	sort.Slice(modes, func(i, j int) bool { return modes[i] < modes[j] })
	for _, m := range modes {
		b.WriteByte(m)
	}
	return b.String()
}

func (c *Channel) topicSnapshot() (topic, setBy string, setAt time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Topic, c.TopicSetBy, c.TopicSetAt
}

func (c *Channel) setTopic(text, setBy string) {
	text = truncateTopic(text)
	c.mu.Lock()
	c.Topic = text
	c.TopicSetBy = setBy
	c.TopicSetAt = time.Now()
	c.mu.Unlock()
}

// isMember reports whether u is currently a member.
func (c *Channel) isMember(u *User) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.Members[u]
	return ok
}

func (c *Channel) roleOf(u *User) map[byte]struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Members[u]
}

// addMember inserts u with the given initial role marks. Caller already
// holds whatever tenant-level serialization is required (spec §5 lock
// ordering: tenant -> channel).
func (c *Channel) addMember(u *User, roles map[byte]struct{}) {
	c.mu.Lock()
	c.Members[u] = roles
	c.mu.Unlock()
}

// removeMember deletes u and reports whether the channel is now empty.
func (c *Channel) removeMember(u *User) (empty bool) {
	c.mu.Lock()
	delete(c.Members, u)
	empty = len(c.Members) == 0
	c.mu.Unlock()
	return empty
}

func (c *Channel) memberCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.Members)
}

// snapshotMembers returns a stable copy of the member set for iteration
// without holding the channel lock during broadcast writes (spec §5:
// "Iterating members to broadcast takes a read lock or snapshots the
// member list").
func (c *Channel) snapshotMembers() map[*User]map[byte]struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[*User]map[byte]struct{}, len(c.Members))
	for u, roles := range c.Members {
		out[u] = roles
	}
	return out
}

// namesList renders the RPL_NAMREPLY member list, prefixing each nick with
// its highest-precedence role mark (`@ > % > +`). When multiPrefix is true
// all of a member's marks are emitted in precedence order instead of just
// the highest one (the `multi-prefix` capability, spec §4.6).
func (c *Channel) namesList(multiPrefix bool) []string {
	members := c.snapshotMembers()
	names := make([]string, 0, len(members))
	for u, roles := range members {
		names = append(names, rolePrefix(roles, multiPrefix)+u.CurrentNick())
	}
	sort.Strings(names)
	return names
}

func rolePrefix(roles map[byte]struct{}, multiPrefix bool) string {
	order := []byte{roleOperator, roleHalfop, roleVoice}
	var b strings.Builder
	for _, r := range order {
		if _, ok := roles[r]; ok {
			b.WriteByte(r)
			if !multiPrefix {
				break
			}
		}
	}
	return b.String()
}

// Permission predicates (spec §4.4).

func (c *Channel) canSendMessage(u *User) bool {
	roles := c.roleOf(u)
	if c.hasMode('m') && !hasVoiceOrAbove(roles) {
		return false
	}
	if c.hasMode('n') && roles == nil && !c.isMember(u) {
		return false
	}
	return true
}

func hasVoiceOrAbove(roles map[byte]struct{}) bool {
	if roles == nil {
		return false
	}
	_, op := roles[roleOperator]
	_, hop := roles[roleHalfop]
	_, voice := roles[roleVoice]
	return op || hop || voice
}

func (c *Channel) canSetTopic(u *User) bool {
	if !c.hasMode('t') {
		return c.isMember(u)
	}
	return hasOp(c.roleOf(u))
}

func hasOp(roles map[byte]struct{}) bool {
	if roles == nil {
		return false
	}
	_, ok := roles[roleOperator]
	return ok
}

func (c *Channel) canKick(u *User) bool {
	return hasOp(c.roleOf(u))
}

func (c *Channel) canInvite(u *User) bool {
	if c.hasMode('i') {
		return hasOp(c.roleOf(u))
	}
	return c.isMember(u)
}

func (c *Channel) canJoin(key string) bool {
	if c.hasMode('i') {
		return false
	}
	if c.hasMode('k') {
		c.mu.RLock()
		want := c.Key
		c.mu.RUnlock()
		return key == want
	}
	return true
}
