package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPunishmentDuration(t *testing.T) {
	playerID := uuid.New()

	t.Run("temporary punishment derives expiry from creation", func(t *testing.T) {
		duration := int64(3600)
		p := NewPunishment(PunishmentBan, playerID, "Steve", uuid.NullUUID{}, "Console", "griefing", &duration)

		require.NotNil(t, p.ExpiresAt)
		assert.Equal(t, p.CreatedAt.Add(time.Hour), *p.ExpiresAt)
		assert.False(t, p.IsPermanent())
		assert.True(t, p.Active)
	})

	t.Run("nil duration means permanent with no expiry", func(t *testing.T) {
		p := NewPunishment(PunishmentBan, playerID, "Steve", uuid.NullUUID{}, "Console", "griefing", nil)

		assert.Nil(t, p.ExpiresAt)
		assert.True(t, p.IsPermanent())
	})

	t.Run("non-positive duration means permanent", func(t *testing.T) {
		zero := int64(0)
		p := NewPunishment(PunishmentMute, playerID, "Steve", uuid.NullUUID{}, "Console", "", &zero)

		assert.Nil(t, p.ExpiresAt)
		assert.True(t, p.IsPermanent())
	})
}

func TestIsExpired(t *testing.T) {
	duration := int64(60)
	p := NewPunishment(PunishmentMute, uuid.New(), "Steve", uuid.NullUUID{}, "Console", "spam", &duration)

	assert.False(t, p.IsExpired(p.CreatedAt.Add(30*time.Second)))
	assert.True(t, p.IsExpired(p.CreatedAt.Add(61*time.Second)))

	permanent := NewPunishment(PunishmentBan, uuid.New(), "Steve", uuid.NullUUID{}, "Console", "", nil)
	assert.False(t, permanent.IsExpired(time.Now().Add(100*365*24*time.Hour)))
}

func TestRevokeFillsAllFields(t *testing.T) {
	p := NewPunishment(PunishmentBan, uuid.New(), "Steve", uuid.NullUUID{}, "Console", "griefing", nil)
	modID := uuid.NullUUID{UUID: uuid.New(), Valid: true}
	at := time.Now().UTC()

	p.Revoke(RevokeManual, "appealed", modID, "Alex", at)

	assert.False(t, p.Active)
	require.NotNil(t, p.RevokedAt)
	assert.Equal(t, at, *p.RevokedAt)
	require.NotNil(t, p.RevokeKind)
	assert.Equal(t, RevokeManual, *p.RevokeKind)
	require.NotNil(t, p.RevokeReason)
	assert.Equal(t, "appealed", *p.RevokeReason)
	assert.Equal(t, modID, p.RevokeModeratorID)
	require.NotNil(t, p.RevokeModeratorName)
	assert.Equal(t, "Alex", *p.RevokeModeratorName)
}

func TestTypePolicies(t *testing.T) {
	assert.True(t, PunishmentBan.CanBeTemporary())
	assert.True(t, PunishmentBan.CanBeRevoked())
	assert.False(t, PunishmentKick.CanBeTemporary())
	assert.False(t, PunishmentKick.CanBeRevoked())
	assert.True(t, PunishmentJail.CanBeRevoked())
}

func TestParsePunishmentType(t *testing.T) {
	got, ok := ParsePunishmentType("BAN")
	assert.True(t, ok)
	assert.Equal(t, PunishmentBan, got)

	_, ok = ParsePunishmentType("warn")
	assert.False(t, ok)
}

func TestDetermineRevokeKind(t *testing.T) {
	assert.Equal(t, RevokeExpired, DetermineRevokeKind(""))
	assert.Equal(t, RevokeExpired, DetermineRevokeKind("   "))
	assert.Equal(t, RevokeExpired, DetermineRevokeKind("Ban expired"))
	assert.Equal(t, RevokeAutomatic, DetermineRevokeKind("Automatic unban"))
	assert.Equal(t, RevokeManual, DetermineRevokeKind("appealed and accepted"))
}
