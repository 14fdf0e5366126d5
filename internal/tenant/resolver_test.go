package tenant

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	t.Run("token claims win", func(t *testing.T) {
		got, err := Resolve(Ref{Claims: "tenant-a"})
		require.NoError(t, err)
		require.Equal(t, "tenant-a", got)
	})

	t.Run("claims and matching path agree", func(t *testing.T) {
		got, err := Resolve(Ref{Claims: "tenant-a", Path: "tenant-a", Header: "tenant-a"})
		require.NoError(t, err)
		require.Equal(t, "tenant-a", got)
	})

	t.Run("claims vs path conflict fails closed", func(t *testing.T) {
		_, err := Resolve(Ref{Claims: "tenant-a", Path: "tenant-b"})
		require.ErrorIs(t, err, ErrTenantMismatch)
	})

	t.Run("claims vs header conflict fails closed", func(t *testing.T) {
		_, err := Resolve(Ref{Claims: "tenant-a", Header: "tenant-b"})
		require.ErrorIs(t, err, ErrTenantMismatch)
	})

	t.Run("path before header", func(t *testing.T) {
		got, err := Resolve(Ref{Path: "tenant-a", Header: "tenant-b"})
		require.NoError(t, err)
		require.Equal(t, "tenant-a", got)
	})

	t.Run("header alone", func(t *testing.T) {
		got, err := Resolve(Ref{Header: "tenant-b"})
		require.NoError(t, err)
		require.Equal(t, "tenant-b", got)
	})

	t.Run("no match is master namespace", func(t *testing.T) {
		got, err := Resolve(Ref{})
		require.NoError(t, err)
		require.Empty(t, got)
	})
}

func TestRequire(t *testing.T) {
	require.NoError(t, Require("tenant-a", false))
	require.NoError(t, Require("", true))
	require.ErrorIs(t, Require("", false), ErrTenantRequired)
}

func TestNamespaceKey(t *testing.T) {
	t.Run("deterministic mapping", func(t *testing.T) {
		key, err := NamespaceKey("Acme Corp")
		require.NoError(t, err)
		require.Equal(t, "org_acme_corp", key)

		again, err := NamespaceKey("Acme Corp")
		require.NoError(t, err)
		require.Equal(t, key, again)
	})

	t.Run("colliding names map to the same key", func(t *testing.T) {
		a, err := NamespaceKey("Acme Corp")
		require.NoError(t, err)
		b, err := NamespaceKey("ACME CORP")
		require.NoError(t, err)
		// Same key: the store's unique index rejects the second creation.
		require.Equal(t, a, b)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := NamespaceKey("ab")
		require.ErrorIs(t, err, ErrInvalidName)
	})

	t.Run("too long", func(t *testing.T) {
		_, err := NamespaceKey(strings.Repeat("a", 101))
		require.ErrorIs(t, err, ErrInvalidName)
	})

	t.Run("unsafe characters rejected", func(t *testing.T) {
		for _, name := range []string{"acme;drop", "acme/corp", "../etc", "_underscore-first"} {
			_, err := NamespaceKey(name)
			require.ErrorIs(t, err, ErrInvalidName, name)
		}
	})
}
