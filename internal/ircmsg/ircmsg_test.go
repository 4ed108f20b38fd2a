package ircmsg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Message
		wantErr bool
	}{
		{
			name: "simple command",
			line: "NICK alice\r\n",
			want: Message{Command: "NICK", Args: "alice"},
		},
		{
			name: "command only",
			line: "CAP\r\n",
			want: Message{Command: "CAP"},
		},
		{
			name: "client prefix discarded from command/args",
			line: ":ignored NICK alice\r\n",
			want: Message{Prefix: "ignored", Command: "NICK", Args: "alice"},
		},
		{
			name: "trailing with colon and spaces",
			line: "PRIVMSG #users :hello there\r\n",
			want: Message{Command: "PRIVMSG", Args: "#users :hello there"},
		},
		{
			name: "lowercase command is uppercased",
			line: "join #users\r\n",
			want: Message{Command: "JOIN", Args: "#users"},
		},
		{
			name:    "empty line",
			line:    "\r\n",
			wantErr: true,
		},
		{
			name:    "only a prefix",
			line:    ":alice",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLineTruncatesOverlongLines(t *testing.T) {
	long := "PRIVMSG #users :" + strings.Repeat("a", 600)
	msg, err := ParseLine(long)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(msg.Command)+len(msg.Args), MaxLineLength)
}

func TestMid(t *testing.T) {
	got := Mid("server.example", "CAP", "*", "LS")
	assert.Equal(t, ":server.example CAP * LS\r\n", got)
}

func TestTrail(t *testing.T) {
	got := Trail("server.example", "332", []string{"alice", "#users"}, "3 records")
	assert.Equal(t, ":server.example 332 alice #users :3 records\r\n", got)
}

func TestTrailEmptyTrailingStillColonPrefixed(t *testing.T) {
	got := Trail("server.example", "331", []string{"alice", "#users"}, "")
	assert.Equal(t, ":server.example 331 alice #users :\r\n", got)
}
