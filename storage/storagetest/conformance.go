// Package storagetest holds the behaviour every storage.Backend must share.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pitabwire/barberdesk/storage"
)

// Exercise runs the backend contract against b. Keys are namespaced by
// t.Name() so that several runs can share one server.
func Exercise(t *testing.T, b storage.Backend) {
	t.Helper()

	ctx := context.Background()
	ns := t.Name() + ":"

	_, found, err := b.Get(ctx, ns+"missing")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, b.Set(ctx, ns+"accessToken", "tok-1"))
	require.NoError(t, b.Set(ctx, ns+"accessToken", "tok-2"))
	value, found, err := b.Get(ctx, ns+"accessToken")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "tok-2", value)

	require.NoError(t, b.Set(ctx, ns+"selectedBusinessId_a@x.com", "1"))
	require.NoError(t, b.Set(ctx, ns+"selectedBusinessId_b@x.com", "2"))
	// Glob and LIKE metacharacters in the prefix match literally.
	require.NoError(t, b.Set(ctx, ns+"selected*BusinessId", "3"))
	require.NoError(t, b.Set(ctx, ns+"selected%BusinessId", "4"))

	keys, err := b.Keys(ctx, ns+"selectedBusinessId_")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{
		ns + "selectedBusinessId_a@x.com",
		ns + "selectedBusinessId_b@x.com",
	}, keys)

	keys, err = b.Keys(ctx, ns+"selected*")
	require.NoError(t, err)
	require.Equal(t, []string{ns + "selected*BusinessId"}, keys)

	require.NoError(t, b.Delete(ctx, ns+"accessToken"))
	require.NoError(t, b.Delete(ctx, ns+"accessToken"))
	_, found, err = b.Get(ctx, ns+"accessToken")
	require.NoError(t, err)
	require.False(t, found)
}
