package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlags_InMemory(t *testing.T) {
	f, err := OpenFlags("")
	require.NoError(t, err)
	defer f.Close()

	_, ok, err := f.Get("notification-banner-dismissed")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.Set("notification-banner-dismissed", "true"))
	v, ok, err := f.Get("notification-banner-dismissed")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	require.NoError(t, f.Delete("notification-banner-dismissed"))
	_, ok, _ = f.Get("notification-banner-dismissed")
	assert.False(t, ok)
}

func TestFlags_PersistAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	f, err := OpenFlags(dir)
	require.NoError(t, err)
	require.NoError(t, f.Set("k", "v"))
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	_, _, err = f.Get("k")
	assert.ErrorIs(t, err, ErrClosed)

	f, err = OpenFlags(dir)
	require.NoError(t, err)
	defer f.Close()
	v, ok, err := f.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
