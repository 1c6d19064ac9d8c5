package picstore

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "profile_pics")
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	return store, dir
}

func TestNewFileStore(t *testing.T) {
	_, dir := newTestStore(t)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = NewFileStore("")
	assert.Error(t, err)
}

func TestFileStore_SaveExtensions(t *testing.T) {
	tests := []struct {
		name    string
		ext     string
		wantErr error
	}{
		{name: "jpg", ext: "jpg"},
		{name: "jpeg", ext: "jpeg"},
		{name: "png", ext: "png"},
		{name: "upper case", ext: "PNG"},
		{name: "mixed case with dot", ext: ".JpEg"},
		{name: "gif", ext: "gif", wantErr: ErrInvalidFileType},
		{name: "empty", ext: "", wantErr: ErrInvalidFileType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, dir := newTestStore(t)
			got, err := store.Save("alice", bytes.NewReader([]byte("img")), tt.ext)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				_, statErr := os.Stat(filepath.Join(dir, "alice.jpg"))
				assert.True(t, os.IsNotExist(statErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "alice.jpg", got)
			_, statErr := os.Stat(filepath.Join(dir, "alice.jpg"))
			assert.NoError(t, statErr)
		})
	}
}

func TestFileStore_RoundTripAndOverwrite(t *testing.T) {
	store, dir := newTestStore(t)

	first := []byte{0x89, 'P', 'N', 'G', 0x00, 0x01, 0xff}
	_, err := store.Save("bob", bytes.NewReader(first), "png")
	require.NoError(t, err)

	got, err := store.Load("bob")
	require.NoError(t, err)
	assert.Equal(t, first, got)

	second := []byte{0xff, 0xd8, 0xff, 0xe0}
	_, err = store.Save("bob", bytes.NewReader(second), "jpg")
	require.NoError(t, err)

	got, err = store.Load("bob")
	require.NoError(t, err)
	assert.Equal(t, second, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "bob.jpg", entries[0].Name())
}

func TestFileStore_LoadNotFound(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Load("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_InvalidUsername(t *testing.T) {
	store, _ := newTestStore(t)
	for _, username := range []string{"", ".", "..", "../etc", "a/b", `a\b`} {
		_, err := store.Save(username, bytes.NewReader([]byte("x")), "jpg")
		assert.ErrorIs(t, err, ErrInvalidUsername, "save %q", username)
		_, err = store.Load(username)
		assert.ErrorIs(t, err, ErrInvalidUsername, "load %q", username)
	}
}

func TestFileStore_FailedWriteKeepsPreviousPicture(t *testing.T) {
	store, dir := newTestStore(t)

	_, err := store.Save("carol", bytes.NewReader([]byte("original")), "jpg")
	require.NoError(t, err)

	_, err = store.Save("carol", failingReader{}, "jpg")
	require.Error(t, err)

	got, err := store.Load("carol")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
