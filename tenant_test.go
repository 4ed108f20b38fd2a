package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantRegisterUserEnforcesNickUniqueness(t *testing.T) {
	tn := newTenant("acme")
	alice := newUser(tn, "alice", "alice", "", accessFull, nil)
	bob := newUser(tn, "alice", "bob", "", accessRead, nil) // same nick, different identity

	require.True(t, tn.registerUser(alice, "conn-1"))
	assert.False(t, tn.registerUser(bob, "conn-2"), "duplicate nick within tenant must be rejected")

	got, ok := tn.userByNick("alice")
	require.True(t, ok)
	assert.Same(t, alice, got)
	assert.Equal(t, 1, tn.userCount())
}

func TestTenantRenameUserCollision(t *testing.T) {
	tn := newTenant("acme")
	alice := newUser(tn, "alice", "alice", "", accessFull, nil)
	bob := newUser(tn, "bob", "bob", "", accessRead, nil)
	require.True(t, tn.registerUser(alice, "conn-1"))
	require.True(t, tn.registerUser(bob, "conn-2"))

	assert.False(t, tn.renameUser(bob, "bob", "alice"), "renaming onto a taken nick must fail")
	assert.True(t, tn.renameUser(bob, "bob", "bobby"))

	_, ok := tn.userByNick("bob")
	assert.False(t, ok)
	got, ok := tn.userByNick("bobby")
	require.True(t, ok)
	assert.Same(t, bob, got)
}

func TestTenantRemoveUserReportsEmpty(t *testing.T) {
	tn := newTenant("acme")
	alice := newUser(tn, "alice", "alice", "", accessFull, nil)
	require.True(t, tn.registerUser(alice, "conn-1"))

	empty := tn.removeUser(alice, "conn-1")
	assert.True(t, empty)
	assert.Equal(t, 0, tn.userCount())
	assert.True(t, tn.nickAvailable("alice"))
}

func TestTenantGetOrCreateChannelIdempotent(t *testing.T) {
	tn := newTenant("acme")
	parsed, _ := parseChannelName("#users")

	ch1, created1 := tn.getOrCreateChannel(parsed, "alice")
	assert.True(t, created1)

	ch2, created2 := tn.getOrCreateChannel(parsed, "bob")
	assert.False(t, created2)
	assert.Same(t, ch1, ch2)
}

func TestTenantCrossTenantIsolation(t *testing.T) {
	acme := newTenant("acme")
	globex := newTenant("globex")
	alice := newUser(acme, "alice", "alice", "", accessFull, nil)
	require.True(t, acme.registerUser(alice, "conn-1"))

	_, ok := globex.userByNick("alice")
	assert.False(t, ok, "a tenant must never see another tenant's nicks")

	_, ok = globex.userByIdentity(alice.IdentityKey())
	assert.False(t, ok)
}
