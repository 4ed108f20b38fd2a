package main

import (
	"context"
	"strings"

	"github.com/ianzepp/monk-irc-sub000/internal/ircmsg"
)

// allCapabilities lists every capability CAP LS advertises (spec §9 Open
// question 3: "advertise them if you wish clients to enable them" -- this
// spec's decision is to advertise the full set).
var allCapabilities = []string{
	"multi-prefix", "tenant-aware", "extended-join",
	"invite-notify", "server-time", "force-join", "force-part",
}

func isSupportedCap(name string) bool {
	for _, c := range allCapabilities {
		if c == name {
			return true
		}
	}
	return false
}

// splitFirstWord splits s into its first whitespace-delimited token and
// the (left-trimmed) remainder, the way every handler below peels off its
// own command-specific arguments from the raw args string (spec §4.1).
func splitFirstWord(s string) (first, rest string) {
	s = strings.TrimLeft(s, " ")
	idx := strings.IndexByte(s, ' ')
	if idx == -1 {
		return s, ""
	}
	return s[:idx], strings.TrimLeft(s[idx+1:], " ")
}

func splitAt(s string, sep byte) (a, b string, ok bool) {
	idx := strings.IndexByte(s, sep)
	if idx == -1 {
		return "", "", false
	}
	return s[:idx], s[idx+1:], true
}

// parseNickArgs implements the three NICK forms of spec §4.3/§6:
// `alice!root@acme` (nick/user/tenant), `root@acme` (user=nick=root,
// tenant=acme), or bare `alice`.
func parseNickArgs(args string) (nick, user, tenant string, extended bool) {
	token, _ := splitFirstWord(args)
	at := strings.IndexByte(token, '@')
	if at == -1 {
		return token, "", "", false
	}
	tenant = token[at+1:]
	left := token[:at]
	if bang := strings.IndexByte(left, '!'); bang != -1 {
		return left[:bang], left[bang+1:], tenant, true
	}
	return left, left, tenant, true
}

// parseUserArgs implements `USER username@tenant <mode> <unused> :<realname>`
// (spec §6).
func parseUserArgs(args string) (userAtTenant, realName string, ok bool) {
	parts := strings.SplitN(args, " ", 4)
	if len(parts) < 4 {
		return "", "", false
	}
	return parts[0], strings.TrimPrefix(parts[3], ":"), true
}

// nickCommand implements the NICK rows of the registration state machine
// (spec §4.3) plus the REGISTERED->NICK rename path.
func nickCommand(s *Server, c *Connection, args string) {
	token, _ := splitFirstWord(args)
	if token == "" {
		s.errNoNickGiven(c)
		return
	}

	nick, user, tenant, extended := parseNickArgs(args)
	if !isValidNick(s.Config.MaxNickLength, nick) {
		s.errErroneousNick(c, nick)
		return
	}

	if c.Registered() {
		s.renameNick(c, nick)
		return
	}

	_, _, _, _, _, existingToken := c.identitySnapshot()

	if extended && existingToken == "" {
		if !isValidUsername(user) || !isValidTenantName(tenant) {
			s.errErroneousNick(c, nick)
			return
		}
		s.authenticateAndAttach(c, nick, user, tenant, "")
		return
	}

	c.setNick(nick)
	if u := c.User(); u != nil {
		if !u.Tenant.renameUser(u, u.CurrentNick(), nick) {
			s.errNickInUse(c, nick)
			return
		}
		u.setNick(nick)
	}
	s.tryCompleteRegistration(c)
}

// userCommand implements the USER row of the state machine.
func userCommand(s *Server, c *Connection, args string) {
	if c.Registered() {
		s.errAlreadyRegistered(c)
		return
	}

	userAtTenant, realName, ok := parseUserArgs(args)
	if !ok {
		s.errNeedMoreParams(c, "USER")
		return
	}

	_, _, _, _, _, existingToken := c.identitySnapshot()
	if existingToken != "" {
		if u := c.User(); u != nil {
			u.mu.Lock()
			u.RealName = realName
			u.mu.Unlock()
		}
		s.tryCompleteRegistration(c)
		return
	}

	username, tenant, ok := splitAt(userAtTenant, '@')
	if !ok || !isValidUsername(username) || !isValidTenantName(tenant) {
		s.errNeedMoreParams(c, "USER")
		return
	}

	nick := c.rawNick()
	if nick == "" {
		s.errNoNickGiven(c)
		return
	}

	s.authenticateAndAttach(c, nick, username, tenant, realName)
}

// authenticateAndAttach calls the backend's /auth/login, creates/attaches
// the User within its Tenant, and on the tenant's first user announces
// TENANTJOIN to tenant-aware connections (spec §4.3).
func (s *Server) authenticateAndAttach(c *Connection, nick, username, tenantName, realName string) {
	result, err := s.backend.Login(context.Background(), tenantName, username)
	if err != nil {
		s.numeric(c, errUnknownCommand, []string{"USER"}, "Authentication failed - "+err.Error())
		return
	}

	t, created := s.tenants.getOrCreate(tenantName)
	u := newUser(t, nick, username, realName, result.Access, c)

	if !t.registerUser(u, c.ID) {
		s.errNickInUse(c, nick)
		if created {
			s.tenants.removeIfEmpty(t)
		}
		return
	}

	c.attachUser(u)
	c.setNick(nick)
	c.setIdentity(username, realName, tenantName, result.Access, result.Token)

	if created {
		s.metrics.TenantsActive.Inc()
		s.announceTenantJoin(tenantName)
	}

	s.tryCompleteRegistration(c)
}

// tryCompleteRegistration implements the AUTHENTICATING -> REGISTERED row:
// nickname ∧ username ∧ token ∧ ¬capNegotiating.
func (s *Server) tryCompleteRegistration(c *Connection) {
	if c.Registered() {
		return
	}
	nick, username, _, _, _, token := c.identitySnapshot()
	if nick == "" || username == "" || token == "" || c.CapNegotiating() {
		return
	}
	s.completeRegistration(c)
}

func (s *Server) completeRegistration(c *Connection) {
	c.setRegistered(true)
	u := c.User()
	s.replyWelcome(c, u.Prefix())
	s.replyYourHost(c)
	s.replyCreated(c)
	s.replyMyInfo(c)
	s.replyMOTD(c)
}

// renameNick handles NICK while REGISTERED: broadcast to self and every
// channel the user is in, updating indices atomically (spec §4.3 row
// "REGISTERED | NICK").
func (s *Server) renameNick(c *Connection, newNick string) {
	u := c.User()
	if u == nil {
		return
	}
	old := u.CurrentNick()
	if canonicalizeNick(old) == canonicalizeNick(newNick) {
		return
	}
	if !u.Tenant.renameUser(u, old, newNick) {
		s.errNickInUse(c, newNick)
		return
	}

	line := ircmsg.Mid(u.Prefix(), "NICK", newNick)
	u.setNick(newNick)
	_ = c.Send(line)

	informed := map[*Connection]struct{}{c: {}}
	for _, ch := range u.channelList() {
		for member := range ch.snapshotMembers() {
			conn := member.Conn()
			if conn == nil {
				continue
			}
			if _, done := informed[conn]; done {
				continue
			}
			informed[conn] = struct{}{}
			_ = conn.Send(line)
		}
	}
}

// capCommand implements IRCv3 capability negotiation (spec §4.6).
func capCommand(s *Server, c *Connection, args string) {
	sub, rest := splitFirstWord(args)
	switch strings.ToUpper(sub) {
	case "LS":
		c.setCapNegotiating(true)
		_ = c.Send(ircmsg.Trail(s.Name, "CAP", []string{"*", "LS"}, strings.Join(allCapabilities, " ")))

	case "LIST":
		_ = c.Send(ircmsg.Trail(s.Name, "CAP", []string{"*", "LIST"}, strings.Join(c.enabledCaps(), " ")))

	case "REQ":
		requested := strings.Fields(strings.TrimPrefix(rest, ":"))
		for _, r := range requested {
			if !isSupportedCap(r) {
				_ = c.Send(ircmsg.Trail(s.Name, "CAP", []string{"*", "NAK"}, strings.Join(requested, " ")))
				return
			}
		}
		for _, r := range requested {
			c.enableCap(r)
			if r == "tenant-aware" {
				s.tenantAware.add(c)
			}
		}
		_ = c.Send(ircmsg.Trail(s.Name, "CAP", []string{"*", "ACK"}, strings.Join(requested, " ")))
		for _, r := range requested {
			if r == "tenant-aware" {
				s.sendTenantsList(c)
			}
		}

	case "END":
		c.setCapNegotiating(false)
		s.tryCompleteRegistration(c)
	}
}

// quitCommand implements client-initiated QUIT (spec §4.5).
func quitCommand(s *Server, c *Connection, args string) {
	reason := strings.TrimPrefix(args, ":")
	if reason == "" {
		reason = "Client Quit"
	}
	s.quitConnection(c, reason)
	_ = c.Close()
}

// quitConnection tears down a connection's user/channel state exactly
// once, broadcasting QUIT to every channel the user is in (excluding the
// quitter) with each co-member informed only once even if they share
// several channels -- grounded on the teacher's map[uint64]struct{}
// dedup-per-recipient pattern used throughout user_client.go's quit().
// Safe to call more than once (explicit QUIT followed by the read loop's
// own cleanup on socket close).
func (s *Server) quitConnection(c *Connection, reason string) {
	c.quitOnce.Do(func() {
		u := c.User()
		if u == nil {
			_ = c.Send(ircmsg.Trail("", "ERROR", nil, "Closing connection: "+reason))
			return
		}

		line := ircmsg.Trail(u.Prefix(), "QUIT", nil, reason)
		informed := map[*Connection]struct{}{}
		for _, ch := range u.channelList() {
			for member := range ch.snapshotMembers() {
				if member == u {
					continue
				}
				conn := member.Conn()
				if conn == nil {
					continue
				}
				if _, done := informed[conn]; done {
					continue
				}
				informed[conn] = struct{}{}
				_ = conn.Send(line)
			}
		}

		for _, ch := range u.channelList() {
			empty := ch.removeMember(u)
			u.removeChannel(ch)
			if empty {
				ch.Tenant.removeChannelIfEmpty(ch)
			}
		}

		t := u.Tenant
		if t.removeUser(u, c.ID) && s.tenants.removeIfEmpty(t) {
			s.metrics.TenantsActive.Dec()
			s.announceTenantPart(t.Name)
		}

		_ = c.Send(ircmsg.Trail("", "ERROR", nil, "Closing connection: "+reason))
	})
}
