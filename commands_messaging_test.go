package main

import (
	"bufio"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupChannelSender builds a tenant with one channel and one member
// (sender) whose Connection is wired for Send, plus a separate
// tenant-aware observer connection subscribed to the fan-out plane.
func setupChannelSender(t *testing.T) (s *Server, ch *Channel, senderConn *Connection, observerR *bufio.Reader) {
	t.Helper()
	s = newTestServer(t)

	tn := newTenant("acme")
	parsed, ok := parseChannelName("#users")
	require.True(t, ok)
	ch, _ = tn.getOrCreateChannel(parsed, "alice")

	senderConn, _ = newTestConnection(t)
	u := newUser(tn, "alice", "alice", "", accessFull, senderConn)
	senderConn.attachUser(u)
	senderConn.setRegistered(true)
	ch.addMember(u, map[byte]struct{}{roleOperator: {}})
	u.addChannel(ch)

	var observerConn *Connection
	observerConn, observerR = newTestConnection(t)
	observerConn.enableCap("tenant-aware")
	s.tenantAware.add(observerConn)

	return s, ch, senderConn, observerR
}

func TestRouteChannelMessagePRIVMSGFansOutTenantAware(t *testing.T) {
	s, _, senderConn, observerR := setupChannelSender(t)
	u := senderConn.User()

	go routeChannelMessage(s, senderConn, u, "#users", "hello", "PRIVMSG", false)

	line := readLineWithTimeout(t, observerR)
	assert.Contains(t, line, "PRIVMSG")
	assert.Contains(t, line, "#users@acme")
	assert.Contains(t, line, "hello")
}

func TestRouteChannelMessageNOTICEDoesNotFanOutTenantAware(t *testing.T) {
	s, ch, senderConn, observerR := setupChannelSender(t)
	u := senderConn.User()

	// A second member receives the local NOTICE broadcast so there's a
	// positive signal the handler ran, distinguishing "ran but didn't fan
	// out" from "never ran".
	memberConn, memberR := newTestConnection(t)
	member := newUser(ch.Tenant, "bob", "bob", "", accessRead, memberConn)
	memberConn.attachUser(member)
	ch.addMember(member, nil)
	member.addChannel(ch)

	go routeChannelMessage(s, senderConn, u, "#users", "shh", "NOTICE", true)

	local := readLineWithTimeout(t, memberR)
	assert.Contains(t, local, "NOTICE")
	assert.Contains(t, local, "shh")

	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := observerR.ReadString('\n')
		done <- result{line, err}
	}()
	select {
	case res := <-done:
		t.Fatalf("tenant-aware observer must not receive a tagged fan-out for a bare-channel NOTICE, got: %q (err=%v)", res.line, res.err)
	case <-time.After(200 * time.Millisecond):
	}
}
