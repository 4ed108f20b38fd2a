package main

import (
	"bufio"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Connection owns exactly one TCP socket (spec §3 Connection). It carries
// the mutable pre-registration identity fields (nickname, username,
// realname, tenant name, access level, auth token) until registration
// completes; after that the attached User is the logical owner, but the
// Connection keeps copies for the hot write path exactly as spec.md
// prescribes.
//
// Grounded on the teacher's net.go (Conn wraps net.Conn + bufio.ReadWriter)
// merged with the identity-field shape of local_client.go's LocalClient
// (PreRegDisplayNick/PreRegUser/PreRegRealName/...), collapsed into one
// struct instead of the teacher's three overlapping client generations.
type Connection struct {
	ID         string
	conn       net.Conn
	rw         *bufio.ReadWriter
	remoteHost string

	connectedAt  time.Time
	lastActivity time.Time

	writeMu sync.Mutex

	mu             sync.Mutex
	registered     bool
	capNegotiating bool
	caps           map[string]struct{}

	nick        string
	username    string
	realName    string
	tenantName  string
	accessLevel string
	authToken   string

	user *User

	quitOnce sync.Once

	log *slog.Logger
}

// NewConnection wraps an accepted net.Conn.
func NewConnection(conn net.Conn, log *slog.Logger) *Connection {
	host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	if host == "" {
		host = conn.RemoteAddr().String()
	}

	now := time.Now()
	return &Connection{
		ID:           uuid.NewString(),
		conn:         conn,
		rw:           bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn)),
		remoteHost:   host,
		connectedAt:  now,
		lastActivity: now,
		caps:         make(map[string]struct{}),
		log:          log,
	}
}

// ReadLine blocks for the next newline-terminated line. Spec §5 deliberately
// specifies no idle-reaping, so unlike the teacher's net.go this does not
// set a per-read deadline.
func (c *Connection) ReadLine() (string, error) {
	line, err := c.rw.ReadString('\n')
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
	return line, nil
}

// WriteRaw writes a pre-framed line (CRLF-terminated) under the
// connection's single write lock, so concurrent broadcasters never
// interleave bytes on this socket (spec §5, Testable property 5).
func (c *Connection) WriteRaw(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.rw.WriteString(line); err != nil {
		return err
	}
	return c.rw.Flush()
}

// Send applies the server-time capability prefix (spec §4.6) for this
// recipient, then writes under the write lock.
func (c *Connection) Send(line string) error {
	if c.HasCap("server-time") {
		line = "@time=" + time.Now().UTC().Format("2006-01-02T15:04:05.000Z") + " " + line
	}
	return c.WriteRaw(line)
}

// Close closes the underlying socket.
func (c *Connection) Close() error {
	return c.conn.Close()
}

func (c *Connection) RemoteHost() string { return c.remoteHost }

func (c *Connection) Registered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registered
}

func (c *Connection) setRegistered(v bool) {
	c.mu.Lock()
	c.registered = v
	c.mu.Unlock()
}

func (c *Connection) CapNegotiating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capNegotiating
}

func (c *Connection) setCapNegotiating(v bool) {
	c.mu.Lock()
	c.capNegotiating = v
	c.mu.Unlock()
}

// HasCap reports whether a capability is currently enabled on this
// connection.
func (c *Connection) HasCap(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.caps[name]
	return ok
}

func (c *Connection) enableCap(name string) {
	c.mu.Lock()
	c.caps[name] = struct{}{}
	c.mu.Unlock()
}

func (c *Connection) enabledCaps() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.caps))
	for name := range c.caps {
		out = append(out, name)
	}
	return out
}

// Nick returns the connection's current nickname, or "*" if unregistered,
// matching spec.md's Testable property 6 ("every numeric reply carries the
// sender's current nickname or `*`").
func (c *Connection) Nick() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nick == "" {
		return "*"
	}
	return c.nick
}

func (c *Connection) rawNick() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nick
}

func (c *Connection) setNick(n string) {
	c.mu.Lock()
	c.nick = n
	c.mu.Unlock()
}

func (c *Connection) setIdentity(username, realName, tenantName, accessLevel, token string) {
	c.mu.Lock()
	c.username = username
	c.realName = realName
	c.tenantName = tenantName
	c.accessLevel = accessLevel
	c.authToken = token
	c.mu.Unlock()
}

func (c *Connection) identitySnapshot() (nick, username, realName, tenantName, accessLevel, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nick, c.username, c.realName, c.tenantName, c.accessLevel, c.authToken
}

func (c *Connection) attachUser(u *User) {
	c.mu.Lock()
	c.user = u
	c.mu.Unlock()
}

func (c *Connection) User() *User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}
