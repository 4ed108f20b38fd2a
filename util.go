package main

import (
	"strconv"
	"strings"
)

// Grounded on the teacher's util.go (canonicalizeNick/canonicalizeChannel/
// isValidNick/isValidUser/isValidChannel), generalized for the channel name
// grammar of spec.md §3/§6 (schema[/recordId], '/'-splitting) which the
// teacher's single-generation util.go did not need.

const (
	minChannelLength = 2
	maxChannelLength = 50
	maxTopicLength   = 300
)

// canonicalizeNick lowercases a nickname for use as a tenant index key.
func canonicalizeNick(n string) string {
	return strings.ToLower(n)
}

// canonicalizeChannel lowercases a channel name for use as a tenant index
// key. The leading '#' and any '/' separator are preserved verbatim.
func canonicalizeChannel(c string) string {
	return strings.ToLower(c)
}

const nickFirstChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ[]\\`_^{|}"
const nickRestExtra = "0123456789-"

// isValidNick checks nickname grammar: length 1-maxLen, first character
// from the IRC special-char set, remaining characters additionally
// allowing digits and '-'.
func isValidNick(maxLen int, n string) bool {
	if len(n) < 1 || len(n) > maxLen {
		return false
	}
	if !strings.ContainsRune(nickFirstChars, rune(n[0])) {
		return false
	}
	for i := 1; i < len(n); i++ {
		c := rune(n[i])
		if strings.ContainsRune(nickFirstChars, c) || strings.ContainsRune(nickRestExtra, c) {
			continue
		}
		return false
	}
	return true
}

// isValidUsername checks the username token is non-empty and free of
// spaces/control characters likely to break line framing.
func isValidUsername(u string) bool {
	if u == "" {
		return false
	}
	for _, c := range u {
		if c == ' ' || c == '\x00' || c == '\r' || c == '\n' || c == '@' {
			return false
		}
	}
	return true
}

// isValidTenantName mirrors isValidUsername's conservative rule: tenant
// names flow into the same "word" grammar as usernames in NICK/USER forms.
func isValidTenantName(t string) bool {
	return isValidUsername(t)
}

func isIdentChar(c byte) bool {
	return c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// parsedChannelName holds the decomposition of a channel name per spec §3:
// `#schema` is a collection channel, `#schema/recordId` is a single-record
// channel.
type parsedChannelName struct {
	Raw      string
	Schema   string
	RecordID string
}

func (p parsedChannelName) isRecordChannel() bool { return p.RecordID != "" }

// parseChannelName validates and decomposes a channel name per spec §3/§6:
// starts '#', overall length [minChannelLength, maxChannelLength], body
// characters restricted to [A-Za-z0-9_-] with a single optional '/'
// separating schema from record id.
func parseChannelName(name string) (parsedChannelName, bool) {
	if len(name) < minChannelLength || len(name) > maxChannelLength {
		return parsedChannelName{}, false
	}
	if name[0] != '#' {
		return parsedChannelName{}, false
	}

	body := name[1:]
	schema := body
	recordID := ""
	if idx := strings.IndexByte(body, '/'); idx != -1 {
		schema = body[:idx]
		recordID = body[idx+1:]
		if strings.IndexByte(recordID, '/') != -1 {
			return parsedChannelName{}, false
		}
	}

	if schema == "" {
		return parsedChannelName{}, false
	}
	for i := 0; i < len(schema); i++ {
		if !isIdentChar(schema[i]) {
			return parsedChannelName{}, false
		}
	}
	if recordID != "" {
		for i := 0; i < len(recordID); i++ {
			if !isIdentChar(recordID[i]) {
				return parsedChannelName{}, false
			}
		}
	}

	return parsedChannelName{Raw: name, Schema: schema, RecordID: recordID}, true
}

// splitTenantSuffix splits a `#chan@tenant` routing tag, per spec §6: the
// '@tenant' suffix is a routing tag, never stored as part of the channel
// name. Returns the bare channel name and the tenant tag (empty if none).
func splitTenantSuffix(target string) (chanName, tenant string) {
	idx := strings.LastIndexByte(target, '@')
	if idx == -1 {
		return target, ""
	}
	return target[:idx], target[idx+1:]
}

// truncateTopic enforces maxTopicLength, matching the teacher's message-
// length truncation convention in ircd.go's privmsgCommand.
func truncateTopic(s string) string {
	if len(s) <= maxTopicLength {
		return s
	}
	return s[:maxTopicLength]
}

// atoiOr parses s as an int, returning fallback on failure. Used by the
// function dispatcher's --limit argument parsing (spec §4.7).
func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
