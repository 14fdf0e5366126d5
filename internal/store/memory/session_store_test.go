package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tenauth/tenauth/internal/models"
	"github.com/tenauth/tenauth/internal/store"
)

func newSession(fingerprint string) *models.Session {
	now := time.Now()
	return &models.Session{
		SessionID:   uuid.New(),
		PrincipalID: uuid.New(),
		Fingerprint: fingerprint,
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
		LastUsedAt:  now,
	}
}

func TestMemorySessionStore_Create(t *testing.T) {
	t.Run("create and fetch by fingerprint", func(t *testing.T) {
		st := NewSessionStore()
		ctx := context.Background()

		sess := newSession("fp-1")
		require.NoError(t, st.Create(ctx, sess))

		got, err := st.GetByFingerprint(ctx, "fp-1")
		require.NoError(t, err)
		require.Equal(t, sess.SessionID, got.SessionID)
	})

	t.Run("duplicate fingerprint returns error", func(t *testing.T) {
		st := NewSessionStore()
		ctx := context.Background()

		first := newSession("fp-1")
		require.NoError(t, st.Create(ctx, first))

		err := st.Create(ctx, newSession("fp-1"))
		require.ErrorIs(t, err, store.ErrSessionAlreadyExists)

		// The original row survives the rejected insert.
		got, err := st.GetByFingerprint(ctx, "fp-1")
		require.NoError(t, err)
		require.Equal(t, first.SessionID, got.SessionID)
	})

	t.Run("expired session is not found", func(t *testing.T) {
		st := NewSessionStore()
		ctx := context.Background()

		sess := newSession("fp-1")
		sess.ExpiresAt = time.Now().Add(-time.Minute)
		require.NoError(t, st.Create(ctx, sess))

		_, err := st.GetByFingerprint(ctx, "fp-1")
		require.ErrorIs(t, err, store.ErrSessionNotFound)
	})
}
