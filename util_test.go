package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidNick(t *testing.T) {
	tests := []struct {
		name string
		nick string
		want bool
	}{
		{"single char", "a", true},
		{"empty", "", false},
		{"max length", "abcdefghijabcdefghijabcdefghij", true}, // 30 chars
		{"too long", "abcdefghijabcdefghijabcdefghija", false}, // 31 chars
		{"invalid first char", "1abc", false},
		{"special first char", "[abc]", true},
		{"digit and dash allowed after first", "a1-2", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isValidNick(30, tt.nick))
		})
	}
}

func TestParseChannelName(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantOK     bool
		wantSchema string
		wantRecord string
	}{
		{"schema channel", "#users", true, "users", ""},
		{"record channel", "#users/42", true, "users", "42"},
		{"too short", "#", false, "", ""},
		{"missing hash", "users", false, "", ""},
		{"double slash rejected", "#users/4/2", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseChannelName(tt.input)
			require.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantSchema, got.Schema)
			assert.Equal(t, tt.wantRecord, got.RecordID)
			assert.Equal(t, tt.wantRecord != "", got.isRecordChannel())
		})
	}
}

func TestSplitTenantSuffix(t *testing.T) {
	chanName, tenant := splitTenantSuffix("#users@acme")
	assert.Equal(t, "#users", chanName)
	assert.Equal(t, "acme", tenant)

	chanName, tenant = splitTenantSuffix("#users")
	assert.Equal(t, "#users", chanName)
	assert.Equal(t, "", tenant)
}

func TestCanonicalize(t *testing.T) {
	assert.Equal(t, "alice", canonicalizeNick("Alice"))
	assert.Equal(t, "#users", canonicalizeChannel("#Users"))
}
