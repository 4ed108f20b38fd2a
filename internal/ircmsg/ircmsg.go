// Package ircmsg frames and parses IRC protocol lines.
//
// Adapted from the line-scanning style of github.com/horgh/irc's decode.go
// and encode.go (vendored by the catbox teacher repo), but deliberately
// does not parse params into a slice: callers get the command plus a single
// raw args string, since this server's handlers each do their own
// command-specific sub-parsing of that remainder.
package ircmsg

import (
	"strings"
)

// MaxLineLength is the IRC protocol line length limit, CRLF included.
const MaxLineLength = 512

// ErrEmptyLine is returned by ParseLine for a blank line, which callers
// should silently skip rather than treat as a protocol error.
var ErrEmptyLine = &parseError{"empty line"}

type parseError struct{ msg string }

func (e *parseError) Error() string { return e.msg }

// Message is a parsed inbound line: an optional prefix (always discarded
// for client-originated traffic, but retained here for completeness),
// the uppercased command, and the raw remainder handlers sub-parse.
type Message struct {
	Prefix  string
	Command string
	Args    string
}

// ParseLine strips CR/LF, truncates to MaxLineLength, and splits a client
// line into prefix/command/args. A client-supplied prefix is parsed but
// the server never trusts it; handlers should ignore Message.Prefix.
func ParseLine(line string) (Message, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength]
	}
	if line == "" {
		return Message{}, ErrEmptyLine
	}

	var prefix string
	if line[0] == ':' {
		idx := strings.IndexByte(line, ' ')
		if idx == -1 {
			return Message{}, &parseError{"malformed prefix: " + line}
		}
		prefix = line[1:idx]
		line = strings.TrimLeft(line[idx+1:], " ")
	}

	if line == "" {
		return Message{}, &parseError{"missing command"}
	}

	var command, args string
	if idx := strings.IndexByte(line, ' '); idx == -1 {
		command = line
	} else {
		command = line[:idx]
		args = strings.TrimLeft(line[idx+1:], " ")
	}

	return Message{
		Prefix:  prefix,
		Command: strings.ToUpper(command),
		Args:    args,
	}, nil
}

// Mid builds a line with only middle parameters, no trailing parameter,
// terminated CRLF. Use Trail when the last parameter is free text.
func Mid(prefix, command string, middle ...string) string {
	return build(prefix, command, middle, "", false)
}

// Trail builds a line whose final parameter is always colon-prefixed
// trailing text (even if empty), terminated CRLF.
func Trail(prefix, command string, middle []string, trailing string) string {
	return build(prefix, command, middle, trailing, true)
}

func build(prefix, command string, middle []string, trailing string, hasTrailing bool) string {
	var b strings.Builder
	if prefix != "" {
		b.WriteByte(':')
		b.WriteString(prefix)
		b.WriteByte(' ')
	}
	b.WriteString(command)
	for _, m := range middle {
		b.WriteByte(' ')
		b.WriteString(m)
	}
	if hasTrailing {
		b.WriteString(" :")
		b.WriteString(trailing)
	}
	b.WriteString("\r\n")
	return b.String()
}
