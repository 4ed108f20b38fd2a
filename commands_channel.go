package main

import (
	"context"
	"strings"
	"time"

	"github.com/ianzepp/monk-irc-sub000/internal/ircmsg"
)

// Grounded on the teacher's joinCommand/partCommand (ircd.go), generalized
// for tenant-scoped channels, schema/record backend validation, and
// role-based membership (spec §4.4), none of which the teacher's flat
// single-tenant channel model needed.

func joinCommand(s *Server, c *Connection, args string) {
	target, rest := splitFirstWord(args)
	key, _ := splitFirstWord(rest)
	if target == "" {
		s.errNeedMoreParams(c, "JOIN")
		return
	}

	u := c.User()
	parsed, ok := parseChannelName(target)
	if !ok {
		s.errNoSuchChannelReply(c, target)
		return
	}

	t := u.Tenant
	canon := canonicalizeChannel(parsed.Raw)

	if existing, already := t.getChannel(canon); already {
		if existing.isMember(u) {
			// Repeated JOIN of a channel already joined: re-emit topic +
			// NAMES, no broadcast (spec §8 round-trip/idempotence).
			s.replyTopic(c, existing)
			s.replyNamesAndEnd(c, existing)
			return
		}
		s.performJoin(u, existing, key)
		return
	}

	ch, created := t.getOrCreateChannel(parsed, u.Username)
	if created && !parsed.isRecordChannel() {
		s.fetchSchemaMeta(ch, u)
	}

	if !s.validateChannelAccess(c, u, parsed) {
		t.removeChannelIfEmpty(ch)
		return
	}

	s.performJoin(u, ch, key)
}

// validateChannelAccess implements spec §4.4's accessibility check: record
// channels require a successful GET on the record, schema channels require
// a successful GET with limit=1.
func (s *Server) validateChannelAccess(c *Connection, u *User, parsed parsedChannelName) bool {
	_, _, _, _, _, token := c.identitySnapshot()
	ctx := context.Background()

	if parsed.isRecordChannel() {
		resp, err := s.backend.GetData(ctx, token, parsed.Schema, parsed.RecordID, 0)
		s.recordBackendOutcome("get_data", err == nil && resp.Status >= 200 && resp.Status < 300)
		if err != nil {
			s.errAccessDenied(c, "")
			return false
		}
		switch {
		case resp.Status == 404:
			s.numeric(c, errNoSuchChannel, []string{parsed.Raw}, "Record not found")
			return false
		case resp.Status < 200 || resp.Status >= 300:
			s.errAccessDenied(c, "")
			return false
		}
		return true
	}

	resp, err := s.backend.GetData(ctx, token, parsed.Schema, "", 1)
	s.recordBackendOutcome("get_data", err == nil && resp.Status >= 200 && resp.Status < 300)
	if err != nil || resp.Status < 200 || resp.Status >= 300 {
		s.errAccessDenied(c, "")
		return false
	}
	return true
}

// recordBackendOutcome increments the backend request metric for one call.
func (s *Server) recordBackendOutcome(endpoint string, ok bool) {
	outcome := "error"
	if ok {
		outcome = "ok"
	}
	s.metrics.BackendRequests.WithLabelValues(endpoint, outcome).Inc()
}

// fetchSchemaMeta synchronously fetches and caches aggregate metadata for
// a newly created schema channel (spec §4.4).
func (s *Server) fetchSchemaMeta(ch *Channel, u *User) {
	conn := u.Conn()
	if conn == nil {
		return
	}
	_, _, _, _, _, token := conn.identitySnapshot()

	resp, err := s.backend.Aggregate(context.Background(), token, ch.Schema, map[string]interface{}{
		"aggregate": map[string]interface{}{
			"total_records": map[string]interface{}{"$count": "*"},
			"min_created":   map[string]interface{}{"$min": "created_at"},
			"max_created":   map[string]interface{}{"$max": "created_at"},
			"max_updated":   map[string]interface{}{"$max": "updated_at"},
		},
	})
	s.recordBackendOutcome("aggregate", err == nil && len(resp.Rows) > 0)
	if err != nil || len(resp.Rows) == 0 {
		return
	}

	row := resp.Rows[0]
	meta := &ChannelMeta{RecordCount: toInt64(row["total_records"])}
	meta.MinCreated = toTime(row["min_created"])
	meta.MaxCreated = toTime(row["max_created"])
	meta.MaxUpdated = toTime(row["max_updated"])

	ch.mu.Lock()
	ch.Meta = meta
	ch.mu.Unlock()
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}

func toTime(v interface{}) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// performJoin applies the +i/+k gate checks, computes the joiner's role,
// adds the membership, and emits the JOIN/topic/NAMES sequence of spec
// §4.4.
func (s *Server) performJoin(u *User, ch *Channel, key string) {
	conn := u.Conn()

	if !ch.canJoin(key) {
		if conn == nil {
			return
		}
		if ch.hasMode('i') {
			s.errInviteOnly(conn, ch.Name)
		} else {
			s.errBadKey(conn, ch.Name)
		}
		return
	}

	role := roleForAccess(u.AccessLevel, ch.memberCount() == 0)
	roles := map[byte]struct{}{}
	if role != 0 {
		roles[role] = struct{}{}
	}
	ch.addMember(u, roles)
	u.addChannel(ch)

	extendedSender := u.HasCap("extended-join")
	renderJoin := func(recipientExtended bool) string {
		if extendedSender || recipientExtended {
			return ircmsg.Trail(u.Prefix(), "JOIN", []string{ch.Name, u.Username}, u.RealName)
		}
		return ircmsg.Mid(u.Prefix(), "JOIN", ch.Name)
	}

	if conn != nil {
		_ = conn.Send(renderJoin(conn.HasCap("extended-join")))
		s.replyTopic(conn, ch)
		s.replyNamesAndEnd(conn, ch)
	}

	for member := range ch.snapshotMembers() {
		if member == u {
			continue
		}
		if mc := member.Conn(); mc != nil {
			_ = mc.Send(renderJoin(mc.HasCap("extended-join")))
		}
	}
}

func roleForAccess(access string, isFirstMember bool) byte {
	switch access {
	case accessRoot, accessFull:
		return roleOperator
	case accessEdit:
		if isFirstMember {
			return roleOperator
		}
		return roleVoice
	case accessRead:
		if isFirstMember {
			return roleOperator
		}
		return 0
	default:
		return 0
	}
}

func partCommand(s *Server, c *Connection, args string) {
	target, rest := splitFirstWord(args)
	reason := strings.TrimPrefix(rest, ":")

	u := c.User()
	ch, ok := u.onChannel(canonicalizeChannel(target))
	if !ok {
		s.errNotOnChannelReply(c, target)
		return
	}

	line := ircmsg.Trail(u.Prefix(), "PART", []string{ch.Name}, reason)
	for member := range ch.snapshotMembers() {
		if conn := member.Conn(); conn != nil {
			_ = conn.Send(line)
		}
	}

	empty := ch.removeMember(u)
	u.removeChannel(ch)
	if empty {
		ch.Tenant.removeChannelIfEmpty(ch)
	}
}

func kickCommand(s *Server, c *Connection, args string) {
	channelName, rest := splitFirstWord(args)
	targetNick, rest2 := splitFirstWord(rest)
	reason := strings.TrimPrefix(rest2, ":")
	if reason == "" {
		reason = targetNick
	}

	u := c.User()
	ch, ok := u.onChannel(canonicalizeChannel(channelName))
	if !ok {
		s.errNotOnChannelReply(c, channelName)
		return
	}

	target, ok := u.Tenant.userByNick(canonicalizeNick(targetNick))
	if !ok || !ch.isMember(target) {
		s.errUserNotInChan(c, targetNick, ch.Name)
		return
	}

	if !ch.canKick(u) && !s.backendKickAllowed(c, ch) {
		s.errChanOPrivs(c, ch.Name)
		return
	}

	line := ircmsg.Trail(u.Prefix(), "KICK", []string{ch.Name, target.CurrentNick()}, reason)
	for member := range ch.snapshotMembers() {
		if conn := member.Conn(); conn != nil {
			_ = conn.Send(line)
		}
	}

	empty := ch.removeMember(target)
	target.removeChannel(ch)
	if empty {
		ch.Tenant.removeChannelIfEmpty(ch)
	}
}

// backendKickAllowed implements the kick-permission backend fallback of
// spec §4.4/scenario 5: GET /api/describe/schema/{schema}, allow on access
// ∈ {root,full,edit} or an explicit write/delete permission.
func (s *Server) backendKickAllowed(c *Connection, ch *Channel) bool {
	_, _, _, _, _, token := c.identitySnapshot()
	resp, err := s.backend.DescribeSchema(context.Background(), token, ch.Schema)
	s.recordBackendOutcome("describe_schema", err == nil && resp.Status >= 200 && resp.Status < 300)
	if err != nil || resp.Status < 200 || resp.Status >= 300 {
		return false
	}

	switch access, _ := resp.Object["access"].(string); access {
	case accessRoot, accessFull, accessEdit:
		return true
	}

	if perms, ok := resp.Object["permissions"].(map[string]interface{}); ok {
		if w, _ := perms["write"].(bool); w {
			return true
		}
		if d, _ := perms["delete"].(bool); d {
			return true
		}
	}
	return false
}

func topicCommand(s *Server, c *Connection, args string) {
	channelName, rest := splitFirstWord(args)

	u := c.User()
	ch, ok := u.onChannel(canonicalizeChannel(channelName))
	if !ok {
		s.errNotOnChannelReply(c, channelName)
		return
	}

	if rest == "" {
		s.replyTopic(c, ch)
		return
	}

	if !ch.canSetTopic(u) {
		s.errChanOPrivs(c, ch.Name)
		return
	}

	text := strings.TrimPrefix(rest, ":")
	ch.setTopic(text, u.CurrentNick())

	line := ircmsg.Trail(u.Prefix(), "TOPIC", []string{ch.Name}, text)
	for member := range ch.snapshotMembers() {
		if conn := member.Conn(); conn != nil {
			_ = conn.Send(line)
		}
	}
}

func inviteCommand(s *Server, c *Connection, args string) {
	targetNick, rest := splitFirstWord(args)
	channelName, _ := splitFirstWord(rest)

	u := c.User()
	ch, ok := u.onChannel(canonicalizeChannel(channelName))
	if !ok {
		s.errNotOnChannelReply(c, channelName)
		return
	}
	if !ch.canInvite(u) {
		s.errChanOPrivs(c, ch.Name)
		return
	}

	target, ok := u.Tenant.userByNick(canonicalizeNick(targetNick))
	if !ok {
		s.errNoSuchNickReply(c, targetNick)
		return
	}

	inviteLine := ircmsg.Mid(u.Prefix(), "INVITE", target.CurrentNick(), ch.Name)
	if conn := target.Conn(); conn != nil {
		_ = conn.Send(inviteLine)
	}
	s.replyInviting(c, target.CurrentNick(), ch.Name)

	for member := range ch.snapshotMembers() {
		if member == u || member == target || !member.HasCap("invite-notify") {
			continue
		}
		if conn := member.Conn(); conn != nil {
			_ = conn.Send(inviteLine)
		}
	}
}

func modeCommand(s *Server, c *Connection, args string) {
	target, rest := splitFirstWord(args)
	u := c.User()

	if strings.HasPrefix(target, "#") {
		ch, ok := u.onChannel(canonicalizeChannel(target))
		if !ok {
			s.errNotOnChannelReply(c, target)
			return
		}
		if rest == "" {
			s.replyChannelModeIs(c, ch)
			return
		}
		applyChannelModeString(ch, rest)
		line := ircmsg.Mid(u.Prefix(), "MODE", ch.Name, rest)
		for member := range ch.snapshotMembers() {
			if conn := member.Conn(); conn != nil {
				_ = conn.Send(line)
			}
		}
		return
	}

	if rest == "" {
		s.replyUModeIs(c, u.modesString())
		return
	}
	applyUserModeString(u, rest)
	s.replyUModeIs(c, u.modesString())
}

// applyChannelModeString toggles the modes named by a `+xy-z [arg]` token
// string; only 'k' consumes a following argument (the key), per the mode
// set spec §4.4 restricts enforcement to ({n,t,i,m,s,p,k}).
func applyChannelModeString(ch *Channel, rest string) {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return
	}
	argIdx := 1
	adding := true
	for _, r := range fields[0] {
		switch r {
		case '+':
			adding = true
		case '-':
			adding = false
		case 'k':
			if adding && argIdx < len(fields) {
				ch.mu.Lock()
				ch.Key = fields[argIdx]
				ch.mu.Unlock()
				argIdx++
			} else if !adding {
				ch.mu.Lock()
				ch.Key = ""
				ch.mu.Unlock()
			}
			ch.setMode('k', adding)
		default:
			ch.setMode(byte(r), adding)
		}
	}
}

func applyUserModeString(u *User, rest string) {
	adding := true
	for _, r := range rest {
		switch r {
		case '+':
			adding = true
		case '-':
			adding = false
		default:
			u.setMode(byte(r), adding)
		}
	}
}

func forcejoinCommand(s *Server, c *Connection, args string) {
	u := c.User()
	if !u.HasCap("force-join") || !isElevated(u) {
		s.errChanOPrivs(c, "")
		return
	}

	targetNick, rest := splitFirstWord(args)
	channelName, _ := splitFirstWord(rest)

	target, ok := u.Tenant.userByNick(canonicalizeNick(targetNick))
	if !ok {
		s.errNoSuchNickReply(c, targetNick)
		return
	}
	parsed, ok := parseChannelName(channelName)
	if !ok {
		s.errNoSuchChannelReply(c, channelName)
		return
	}

	t := u.Tenant
	ch, created := t.getOrCreateChannel(parsed, u.Username)
	if created && !parsed.isRecordChannel() {
		s.fetchSchemaMeta(ch, target)
	}
	if ch.isMember(target) {
		return
	}
	s.performJoin(target, ch, "")
}

func forcepartCommand(s *Server, c *Connection, args string) {
	u := c.User()
	if !u.HasCap("force-part") || !isElevated(u) {
		s.errChanOPrivs(c, "")
		return
	}

	targetNick, rest := splitFirstWord(args)
	channelName, rest2 := splitFirstWord(rest)
	reason := strings.TrimPrefix(rest2, ":")
	if reason == "" {
		reason = "Forced part"
	}

	target, ok := u.Tenant.userByNick(canonicalizeNick(targetNick))
	if !ok {
		s.errNoSuchNickReply(c, targetNick)
		return
	}
	ch, ok := target.onChannel(canonicalizeChannel(channelName))
	if !ok {
		s.errNotOnChannelReply(c, channelName)
		return
	}

	line := ircmsg.Trail(target.Prefix(), "PART", []string{ch.Name}, reason)
	for member := range ch.snapshotMembers() {
		if conn := member.Conn(); conn != nil {
			_ = conn.Send(line)
		}
	}

	empty := ch.removeMember(target)
	target.removeChannel(ch)
	if empty {
		ch.Tenant.removeChannelIfEmpty(ch)
	}
}

func isElevated(u *User) bool {
	return u.AccessLevel == accessRoot || u.AccessLevel == accessFull
}
