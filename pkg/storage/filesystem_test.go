package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	name, err := store.Save("REQ-1.pdf", []byte("%PDF"))
	require.NoError(t, err)
	require.True(t, store.Exists(name))

	data, err := store.Read(name)
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF"), data)

	require.NoError(t, store.Delete(name))
	require.False(t, store.Exists(name))
	_, err = store.Read(name)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("../escape.pdf", []byte("x"))
	require.Error(t, err)
	_, err = store.Read("/etc/passwd")
	require.Error(t, err)
}
