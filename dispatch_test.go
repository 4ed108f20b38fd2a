package main

import (
	"bufio"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/ianzepp/monk-irc-sub000/internal/config"
	"github.com/ianzepp/monk-irc-sub000/internal/ircmsg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer builds a Server with no live listener, suitable for
// exercising dispatch/numeric-reply behavior directly.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		ListenHost:    "127.0.0.1",
		ListenPort:    0,
		ServerName:    "test.monk-irc",
		Version:       "test",
		MaxNickLength: 30,
		BackendURL:    "http://127.0.0.1:0",
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(cfg, log)
}

// newTestConnection wires a Connection to one end of an in-memory pipe,
// returning the Connection and a bufio.Reader on the other end so the
// test can read back whatever the server writes.
func newTestConnection(t *testing.T) (*Connection, *bufio.Reader) {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	t.Cleanup(func() {
		_ = serverSide.Close()
		_ = clientSide.Close()
	})

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewConnection(serverSide, log)
	return c, bufio.NewReader(clientSide)
}

func readLineWithTimeout(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := r.ReadString('\n')
		ch <- result{line, err}
	}()
	select {
	case res := <-ch:
		require.NoError(t, res.err)
		return res.line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a line from the server")
		return ""
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	s := newTestServer(t)
	c, r := newTestConnection(t)
	defer func() { _ = c.Close() }()

	go s.dispatch(c, ircmsg.Message{Command: "BOGUS"})

	line := readLineWithTimeout(t, r)
	assert.Contains(t, line, " 421 ")
	assert.Contains(t, line, "Unknown command")
}

func TestDispatchRegistrationGate(t *testing.T) {
	s := newTestServer(t)
	c, r := newTestConnection(t)
	defer func() { _ = c.Close() }()

	go s.dispatch(c, ircmsg.Message{Command: "JOIN", Args: "#users"})

	line := readLineWithTimeout(t, r)
	assert.Contains(t, line, " 451 ")
	assert.Contains(t, line, "have not registered")
}

func TestDispatchPanicContainment(t *testing.T) {
	s := newTestServer(t)
	c, r := newTestConnection(t)
	defer func() { _ = c.Close() }()

	commandTable["__PANIC_TEST__"] = commandSpec{
		name:              "__PANIC_TEST__",
		needsRegistration: false,
		handler: func(s *Server, c *Connection, args string) {
			panic("boom")
		},
	}
	defer delete(commandTable, "__PANIC_TEST__")

	go s.dispatch(c, ircmsg.Message{Command: "__PANIC_TEST__"})

	line := readLineWithTimeout(t, r)
	assert.Contains(t, line, " 400 ")
	assert.Contains(t, line, "Internal server error")
}

func TestDispatchPingEchoesPong(t *testing.T) {
	s := newTestServer(t)
	c, r := newTestConnection(t)
	defer func() { _ = c.Close() }()

	go s.dispatch(c, ircmsg.Message{Command: "PING", Args: ":token123"})

	line := readLineWithTimeout(t, r)
	assert.Contains(t, line, "PONG")
	assert.Contains(t, line, "token123")
}
