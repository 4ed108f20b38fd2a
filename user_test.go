package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserIdentityKey(t *testing.T) {
	tn := newTenant("acme")
	u := newUser(tn, "alice", "alice", "Alice A", accessFull, nil)
	assert.Equal(t, "acme:alice", u.IdentityKey())
}

func TestUserAddRemoveChannelInvariant(t *testing.T) {
	tn := newTenant("acme")
	u := newUser(tn, "alice", "alice", "", accessFull, nil)
	parsed, _ := parseChannelName("#users")
	ch, _ := tn.getOrCreateChannel(parsed, "alice")

	_, ok := u.onChannel(canonicalizeChannel("#users"))
	assert.False(t, ok)

	u.addChannel(ch)
	got, ok := u.onChannel(canonicalizeChannel("#users"))
	assert.True(t, ok)
	assert.Same(t, ch, got)
	assert.Len(t, u.channelList(), 1)

	u.removeChannel(ch)
	_, ok = u.onChannel(canonicalizeChannel("#users"))
	assert.False(t, ok)
	assert.Empty(t, u.channelList())
}

func TestUserSetNickAppendsHistory(t *testing.T) {
	tn := newTenant("acme")
	u := newUser(tn, "alice", "alice", "", accessFull, nil)
	assert.Equal(t, []string{"alice"}, u.NickHistory)

	u.setNick("alice2")
	assert.Equal(t, "alice2", u.CurrentNick())
	assert.Equal(t, []string{"alice", "alice2"}, u.NickHistory)
}

func TestUserPrefixFallsBackToTenantNameWithoutConn(t *testing.T) {
	tn := newTenant("acme")
	u := newUser(tn, "alice", "alice", "", accessFull, nil)
	assert.Equal(t, "alice!alice@acme", u.Prefix())
}

func TestUserIsOperAccess(t *testing.T) {
	tn := newTenant("acme")
	root := newUser(tn, "root", "root", "", accessRoot, nil)
	full := newUser(tn, "full", "full", "", accessFull, nil)
	edit := newUser(tn, "edit", "edit", "", accessEdit, nil)
	read := newUser(tn, "read", "read", "", accessRead, nil)

	assert.True(t, root.isOperAccess())
	assert.True(t, full.isOperAccess())
	assert.False(t, edit.isOperAccess())
	assert.False(t, read.isOperAccess())
}

func TestUserModes(t *testing.T) {
	tn := newTenant("acme")
	u := newUser(tn, "alice", "alice", "", accessFull, nil)
	assert.Equal(t, "+", u.modesString())

	u.setMode('i', true)
	assert.Equal(t, "+i", u.modesString())

	u.setMode('i', false)
	assert.Equal(t, "+", u.modesString())
}
