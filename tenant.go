package main

import (
	"sync"
	"time"
)

// Tenant is the top-level isolation boundary (spec §3 Tenant, Glossary):
// a namespace containing its own users, nickname index, connection->user
// index, and channels. Cross-tenant lookups never succeed.
//
// Grounded on the teacher's Server struct (ircd.go: `Clients`, `Channels`
// map[string]*Channel keyed by canonical name) and local_client.go's
// Catbox-referenced `Users`/`Nicks`/`Channels` maps, folded down to a
// per-tenant scope instead of one process-global set, which is the
// central generalization this spec requires.
type Tenant struct {
	mu sync.RWMutex

	Name string

	usersByIdentity map[string]*User // "tenant:username" -> User
	nicks           map[string]*User // canonical nick -> User
	byConnID        map[string]*User // Connection.ID -> User
	channels        map[string]*Channel // canonical name -> Channel

	createdAt    time.Time
	lastActivity time.Time
}

func newTenant(name string) *Tenant {
	now := time.Now()
	return &Tenant{
		Name:            name,
		usersByIdentity: make(map[string]*User),
		nicks:           make(map[string]*User),
		byConnID:        make(map[string]*User),
		channels:        make(map[string]*Channel),
		createdAt:       now,
		lastActivity:    now,
	}
}

func (t *Tenant) touch() {
	t.mu.Lock()
	t.lastActivity = time.Now()
	t.mu.Unlock()
}

// nickAvailable reports whether nick (canonical) is free within this
// tenant -- spec.md Testable invariant 2: nickname->User is injective per
// tenant.
func (t *Tenant) nickAvailable(canonNick string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, taken := t.nicks[canonNick]
	return !taken
}

func (t *Tenant) userByNick(canonNick string) (*User, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	u, ok := t.nicks[canonNick]
	return u, ok
}

func (t *Tenant) userByIdentity(identityKey string) (*User, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	u, ok := t.usersByIdentity[identityKey]
	return u, ok
}

// registerUser inserts u into all three indices atomically, enforcing the
// nickname-uniqueness invariant. Returns false (no-op) if the nick is
// already taken by a different user.
func (t *Tenant) registerUser(u *User, connID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	canon := canonicalizeNick(u.Nick)
	if existing, taken := t.nicks[canon]; taken && existing != u {
		return false
	}

	t.usersByIdentity[u.IdentityKey()] = u
	t.nicks[canon] = u
	t.byConnID[connID] = u
	t.lastActivity = time.Now()
	return true
}

// renameUser moves a user's nickname index entry, enforcing uniqueness.
func (t *Tenant) renameUser(u *User, oldNick, newNick string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	canonNew := canonicalizeNick(newNick)
	if existing, taken := t.nicks[canonNew]; taken && existing != u {
		return false
	}
	delete(t.nicks, canonicalizeNick(oldNick))
	t.nicks[canonNew] = u
	return true
}

// removeUser deletes u from all indices. Returns true if the tenant has no
// users left (caller should then consider tenant teardown / TENANTPART).
func (t *Tenant) removeUser(u *User, connID string) (empty bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.usersByIdentity, u.IdentityKey())
	delete(t.nicks, canonicalizeNick(u.Nick))
	delete(t.byConnID, connID)
	return len(t.usersByIdentity) == 0
}

func (t *Tenant) userCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.usersByIdentity)
}

// getOrCreateChannel returns the existing channel or creates and inserts a
// new one, reporting whether it was newly created.
func (t *Tenant) getOrCreateChannel(parsed parsedChannelName, createdBy string) (*Channel, bool) {
	canon := canonicalizeChannel(parsed.Raw)

	t.mu.Lock()
	defer t.mu.Unlock()

	if ch, ok := t.channels[canon]; ok {
		return ch, false
	}
	ch := newChannel(t, parsed, createdBy)
	t.channels[canon] = ch
	return ch, true
}

func (t *Tenant) getChannel(canonName string) (*Channel, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ch, ok := t.channels[canonName]
	return ch, ok
}

// removeChannelIfEmpty implements spec.md Testable invariant 4: a channel
// with an empty member set must be removed from its tenant.
func (t *Tenant) removeChannelIfEmpty(ch *Channel) {
	if ch.memberCount() != 0 {
		return
	}
	t.mu.Lock()
	delete(t.channels, canonicalizeChannel(ch.Name))
	t.mu.Unlock()
}
