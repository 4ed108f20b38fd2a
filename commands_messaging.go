package main

import (
	"strings"

	"github.com/ianzepp/monk-irc-sub000/internal/ircmsg"
)

// Grounded on the teacher's privmsgCommand (ircd.go), generalized for
// tenant isolation, the tenant-aware tagged fan-out plane, and the `!`
// function-invocation trigger -- none of which the teacher's flat
// single-tenant PRIVMSG needed.

func privmsgCommand(s *Server, c *Connection, args string) {
	routeMessage(s, c, args, "PRIVMSG", false)
}

func noticeCommand(s *Server, c *Connection, args string) {
	routeMessage(s, c, args, "NOTICE", true)
}

// routeMessage implements spec §4.5. NOTICE never emits error numerics
// (the "hard IRC rule" spec.md calls out): every failure path that would
// reply with a numeric for PRIVMSG silently drops for NOTICE instead.
func routeMessage(s *Server, c *Connection, args string, verb string, isNotice bool) {
	target, rest := splitFirstWord(args)
	text := strings.TrimPrefix(rest, ":")

	if target == "" {
		if !isNotice {
			s.errNeedMoreParams(c, verb)
		}
		return
	}

	u := c.User()

	if strings.HasPrefix(target, "#") {
		routeChannelMessage(s, c, u, target, text, verb, isNotice)
		return
	}

	routeNickMessage(s, c, u, target, text, verb, isNotice)
}

func routeChannelMessage(s *Server, c *Connection, u *User, target, text, verb string, isNotice bool) {
	chanPart, tenantTag := splitTenantSuffix(target)

	if tenantTag != "" && u.HasCap("tenant-aware") {
		t, ok := s.tenants.get(tenantTag)
		if !ok {
			if !isNotice {
				s.errNoSuchChannelReply(c, target)
			}
			return
		}
		ch, ok := t.getChannel(canonicalizeChannel(chanPart))
		if !ok {
			if !isNotice {
				s.errNoSuchChannelReply(c, target)
			}
			return
		}
		line := ircmsg.Trail(u.Prefix(), verb, []string{ch.Name}, text)
		for member := range ch.snapshotMembers() {
			if conn := member.Conn(); conn != nil {
				_ = conn.Send(line)
			}
		}
		return
	}

	canon := canonicalizeChannel(chanPart)
	ch, ok := u.Tenant.getChannel(canon)
	if !ok || !ch.isMember(u) {
		if !isNotice {
			s.errCannotSend(c, target, "not a member")
		}
		return
	}
	if !ch.canSendMessage(u) {
		if !isNotice {
			s.errCannotSend(c, target, "moderated/not a member")
		}
		return
	}

	if verb == "PRIVMSG" && strings.HasPrefix(text, "!") {
		s.dispatchFunction(u, ch, strings.TrimPrefix(text, "!"))
		return
	}

	line := ircmsg.Trail(u.Prefix(), verb, []string{ch.Name}, text)
	for member := range ch.snapshotMembers() {
		if member == u {
			continue
		}
		if conn := member.Conn(); conn != nil {
			_ = conn.Send(line)
		}
	}
	s.metrics.MessagesRouted.WithLabelValues(strings.ToLower(verb)).Inc()

	if verb == "PRIVMSG" {
		s.fanOutTenantAware(u, verb, ch.Name, text)
	}
}

func routeNickMessage(s *Server, c *Connection, u *User, target, text, verb string, isNotice bool) {
	dest, ok := u.Tenant.userByNick(canonicalizeNick(target))
	if !ok {
		if !isNotice {
			s.errNoSuchNickReply(c, target)
		}
		return
	}

	conn := dest.Conn()
	if conn == nil {
		return
	}
	_ = conn.Send(ircmsg.Trail(u.Prefix(), verb, []string{dest.CurrentNick()}, text))
}

func pingCommand(s *Server, c *Connection, args string) {
	_ = c.Send(ircmsg.Trail(s.Name, "PONG", []string{s.Name}, args))
}

func pongCommand(s *Server, c *Connection, args string) {
	// Purely echo-based keepalive (spec §5): no idle-reaping, nothing to do.
}
