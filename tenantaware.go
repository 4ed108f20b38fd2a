package main

import (
	"strings"
	"sync"

	"github.com/ianzepp/monk-irc-sub000/internal/ircmsg"
)

// TenantAwareRegistry is the process-global set of connections that have
// enabled the `tenant-aware` capability (spec §3 Tenant-aware registry,
// §4.6). It receives cross-tenant routing notifications independent of
// per-tenant isolation.
//
// Grounded on local_server.go's server-linking burst/propagation plane
// (sendBurst, messageFromServer fan-out to all linked servers): this spec
// has no second server to link to, so that pattern is repurposed here as
// the single in-process fan-out audience instead.
type TenantAwareRegistry struct {
	mu    sync.Mutex
	conns map[*Connection]struct{}
}

func newTenantAwareRegistry() *TenantAwareRegistry {
	return &TenantAwareRegistry{conns: make(map[*Connection]struct{})}
}

func (r *TenantAwareRegistry) add(c *Connection) {
	r.mu.Lock()
	r.conns[c] = struct{}{}
	r.mu.Unlock()
}

func (r *TenantAwareRegistry) remove(c *Connection) {
	r.mu.Lock()
	delete(r.conns, c)
	r.mu.Unlock()
}

func (r *TenantAwareRegistry) snapshot() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Connection, 0, len(r.conns))
	for c := range r.conns {
		out = append(out, c)
	}
	return out
}

// broadcast writes a pre-built line to every tenant-aware connection,
// snapshotting first so the fan-out never holds the registry lock while
// writing sockets (spec §5).
func (r *TenantAwareRegistry) broadcast(line string) {
	for _, c := range r.snapshot() {
		_ = c.Send(line)
	}
}

// announceTenantJoin emits TENANTJOIN <tenant> on first user of a tenant.
func (s *Server) announceTenantJoin(tenantName string) {
	s.tenantAware.broadcast(ircmsg.Mid(s.Name, "TENANTJOIN", tenantName))
}

// announceTenantPart emits TENANTPART <tenant> when a tenant's last user
// leaves.
func (s *Server) announceTenantPart(tenantName string) {
	s.tenantAware.broadcast(ircmsg.Mid(s.Name, "TENANTPART", tenantName))
}

// sendTenantsList sends the synthetic `TENANTS <nick> :<comma-sep names>`
// line a connection receives the moment it enables tenant-aware (spec
// §4.6).
func (s *Server) sendTenantsList(c *Connection) {
	names := s.tenants.names()
	_ = c.Send(ircmsg.Trail(s.Name, "TENANTS", []string{c.Nick()}, strings.Join(names, ",")))
}

// fanOutTenantAware re-sends a channel PRIVMSG/NOTICE to every tenant-aware
// connection with the `#chan@tenant` tagged form (spec §4.5 scenario 4),
// excluding the sender's own connection (the sender is never sent its own
// channel message, tagged or untagged).
func (s *Server) fanOutTenantAware(sender *User, verb, channel, text string) {
	line := ircmsg.Trail(sender.Prefix(), verb, []string{channel + "@" + sender.Tenant.Name}, text)
	senderConn := sender.Conn()
	for _, c := range s.tenantAware.snapshot() {
		if c == senderConn {
			continue
		}
		_ = c.Send(line)
	}
}
