package main

import (
	"fmt"
	"sync"
	"time"
)

// Access levels returned by the backend on login (spec §3, Glossary).
const (
	accessRoot = "root"
	accessFull = "full"
	accessEdit = "edit"
	accessRead = "read"
)

// User is one authenticated identity within a Tenant; identity is
// `tenant:username` (spec §3 User).
//
// Grounded on the newest-generation user.go (`User{DisplayNick, UID,
// Channels, LocalUser, ...}`), stripped of the TS6/server-linking fields
// (UID, ClosestServer, Server) that belong to out-of-scope server-to-server
// linking, and given the access-level/capability fields spec.md requires
// instead.
type User struct {
	mu sync.RWMutex

	Tenant      *Tenant
	Nick        string
	Username    string
	RealName    string
	AccessLevel string
	Away        string
	Modes       map[byte]struct{}
	NickHistory []string
	CreatedAt   time.Time

	Channels map[string]*Channel // canonical name -> Channel

	conn *Connection
}

func newUser(t *Tenant, nick, username, realName, accessLevel string, conn *Connection) *User {
	return &User{
		Tenant:      t,
		Nick:        nick,
		Username:    username,
		RealName:    realName,
		AccessLevel: accessLevel,
		Modes:       make(map[byte]struct{}),
		NickHistory: []string{nick},
		CreatedAt:   time.Now(),
		Channels:    make(map[string]*Channel),
		conn:        conn,
	}
}

// IdentityKey is the tenant-scoped identity spec.md defines as
// `tenant:username`.
func (u *User) IdentityKey() string {
	return u.Tenant.Name + ":" + u.Username
}

func (u *User) CurrentNick() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.Nick
}

func (u *User) setNick(n string) {
	u.mu.Lock()
	u.Nick = n
	u.NickHistory = append(u.NickHistory, n)
	u.mu.Unlock()
}

func (u *User) Conn() *Connection {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.conn
}

// Prefix renders the `nick!user@host` source form (Glossary: User prefix).
func (u *User) Prefix() string {
	host := u.Tenant.Name
	if conn := u.Conn(); conn != nil {
		host = conn.RemoteHost()
	}
	return fmt.Sprintf("%s!%s@%s", u.CurrentNick(), u.Username, host)
}

func (u *User) HasCap(name string) bool {
	if conn := u.Conn(); conn != nil {
		return conn.HasCap(name)
	}
	return false
}

func (u *User) isOperAccess() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.AccessLevel == accessRoot || u.AccessLevel == accessFull
}

// onChannel reports whether the user currently belongs to the named
// (canonicalized) channel.
func (u *User) onChannel(canonName string) (*Channel, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	ch, ok := u.Channels[canonName]
	return ch, ok
}

// addChannel and removeChannel keep User.Channels in sync with
// Channel.Members under a single critical section per caller, satisfying
// spec.md Testable invariant 1 (`u ∈ c.members ⇔ c ∈ u.channels`).
func (u *User) addChannel(ch *Channel) {
	u.mu.Lock()
	u.Channels[canonicalizeChannel(ch.Name)] = ch
	u.mu.Unlock()
}

func (u *User) removeChannel(ch *Channel) {
	u.mu.Lock()
	delete(u.Channels, canonicalizeChannel(ch.Name))
	u.mu.Unlock()
}

func (u *User) channelList() []*Channel {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]*Channel, 0, len(u.Channels))
	for _, ch := range u.Channels {
		out = append(out, ch)
	}
	return out
}

func (u *User) modesString() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := "+"
	for m := range u.Modes {
		out += string(m)
	}
	return out
}

func (u *User) setMode(m byte, on bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if on {
		u.Modes[m] = struct{}{}
	} else {
		delete(u.Modes, m)
	}
}
