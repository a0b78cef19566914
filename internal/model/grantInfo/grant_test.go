package grantInfo_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"share-service/internal/apperrors"
	"share-service/internal/model/grantInfo"
)

func TestNewUserGrant(t *testing.T) {
	fileID := uuid.New()

	t.Run("valid without expiry", func(t *testing.T) {
		g, err := grantInfo.NewUserGrant(fileID, 1, 2, nil)
		assert.NoError(t, err)
		assert.Equal(t, grantInfo.KindUser, g.Kind)
		assert.NotNil(t, g.GranteeID)
		assert.Equal(t, uint32(2), *g.GranteeID)
		assert.Empty(t, g.Token)
		assert.True(t, g.Active)
		assert.Nil(t, g.ExpiresAt)
	})

	t.Run("valid with future expiry", func(t *testing.T) {
		exp := time.Now().Add(time.Hour)
		g, err := grantInfo.NewUserGrant(fileID, 1, 2, &exp)
		assert.NoError(t, err)
		assert.NotNil(t, g.ExpiresAt)
	})

	t.Run("expiry in the past rejected", func(t *testing.T) {
		exp := time.Now().Add(-time.Minute)
		_, err := grantInfo.NewUserGrant(fileID, 1, 2, &exp)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

func TestNewLinkGrant(t *testing.T) {
	fileID := uuid.New()
	token := strings.Repeat("a", grantInfo.TokenLength)

	t.Run("valid", func(t *testing.T) {
		g, err := grantInfo.NewLinkGrant(fileID, 1, token, nil)
		assert.NoError(t, err)
		assert.Equal(t, grantInfo.KindLink, g.Kind)
		assert.Nil(t, g.GranteeID)
		assert.Equal(t, token, g.Token)
	})

	t.Run("short token rejected", func(t *testing.T) {
		_, err := grantInfo.NewLinkGrant(fileID, 1, "too-short", nil)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("expiry in the past rejected", func(t *testing.T) {
		exp := time.Now().Add(-time.Second)
		_, err := grantInfo.NewLinkGrant(fileID, 1, token, &exp)
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

func TestValidAt(t *testing.T) {
	fileID := uuid.New()
	now := time.Now()

	t.Run("no expiry is valid forever", func(t *testing.T) {
		g, err := grantInfo.NewUserGrant(fileID, 1, 2, nil)
		assert.NoError(t, err)
		assert.True(t, g.ValidAt(now.Add(1000*time.Hour)))
	})

	t.Run("exclusive boundary", func(t *testing.T) {
		exp := now.Add(time.Hour)
		g, err := grantInfo.NewUserGrant(fileID, 1, 2, &exp)
		assert.NoError(t, err)

		// Invalid at exactly expiresAt, still valid one millisecond before.
		assert.False(t, g.ValidAt(exp))
		assert.True(t, g.ValidAt(exp.Add(-time.Millisecond)))
		assert.False(t, g.ValidAt(exp.Add(time.Millisecond)))
	})

	t.Run("revoked grant invalid despite future expiry", func(t *testing.T) {
		exp := now.Add(time.Hour)
		g, err := grantInfo.NewUserGrant(fileID, 1, 2, &exp)
		assert.NoError(t, err)
		g.Active = false
		assert.False(t, g.ValidAt(now))
	})
}
