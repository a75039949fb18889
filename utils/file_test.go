package utils

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_Put(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStore(root, "/uploads/")

	url, err := store.Put(context.Background(), "c1/1700000000000_proof.jpg", []byte("jpeg"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/c1/1700000000000_proof.jpg", url)

	data, err := os.ReadFile(filepath.Join(root, "c1", "1700000000000_proof.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))
}

func TestLocalStore_PutRefusesOverwrite(t *testing.T) {
	store := NewLocalStore(t.TempDir(), "/uploads")
	ctx := context.Background()

	_, err := store.Put(ctx, "c1/a.png", []byte("first"), "image/png")
	require.NoError(t, err)

	_, err = store.Put(ctx, "c1/a.png", []byte("second"), "image/png")
	require.ErrorIs(t, err, ErrObjectExists)

	data, err := os.ReadFile(filepath.Join(store.Root, "c1", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestLocalStore_PutRejectsEscapingKeys(t *testing.T) {
	store := NewLocalStore(t.TempDir(), "/uploads")

	for _, key := range []string{"../outside.png", "/etc/passwd", "", "c1/../../x.png"} {
		_, err := store.Put(context.Background(), key, []byte("x"), "image/png")
		assert.Error(t, err, key)
	}
}
