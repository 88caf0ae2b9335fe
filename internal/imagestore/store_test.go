package imagestore_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-ledger/internal/imagestore"
)

func newStore(t *testing.T) *imagestore.Store {
	t.Helper()
	s, err := imagestore.New(filepath.Join(t.TempDir(), "images"), nil)
	require.NoError(t, err)
	return s
}

func TestSaveLoadDelete(t *testing.T) {
	s := newStore(t)

	id, err := s.Save([]byte("jpeg bytes"))
	require.NoError(t, err)
	assert.True(t, s.Has(id))

	data, err := s.Load(id)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))

	path, err := s.Path(id)
	require.NoError(t, err)
	assert.Equal(t, id+".jpg", filepath.Base(path))

	require.NoError(t, s.Delete(id))
	assert.False(t, s.Has(id))
	_, err = s.Load(id)
	assert.ErrorIs(t, err, imagestore.ErrImageNotFound)
	assert.NoError(t, s.Delete(id), "deleting a missing image is fine")
}

func TestPutReplaces(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Put("ABC", strings.NewReader("one")))
	require.NoError(t, s.Put("ABC", strings.NewReader("two")))
	data, err := s.Load("ABC")
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestRejectsTraversal(t *testing.T) {
	s := newStore(t)
	for _, id := range []string{"", "..", "../escape", `a\b`, "x/y"} {
		_, err := s.Load(id)
		assert.ErrorIs(t, err, imagestore.ErrInvalidID, id)
		assert.ErrorIs(t, s.Put(id, strings.NewReader("x")), imagestore.ErrInvalidID, id)
	}
}

func TestDeleteManyJoinsErrors(t *testing.T) {
	s := newStore(t)
	a, _ := s.Save([]byte("a"))
	b, _ := s.Save([]byte("b"))

	err := s.DeleteMany([]string{a, "../bad", b, "missing"})
	assert.ErrorIs(t, err, imagestore.ErrInvalidID)
	assert.False(t, s.Has(a))
	assert.False(t, s.Has(b))
}

func TestIDFromFileName(t *testing.T) {
	id, ok := imagestore.IDFromFileName("Images/ABC-123.jpg")
	assert.True(t, ok)
	assert.Equal(t, "ABC-123", id)
	_, ok = imagestore.IDFromFileName("notes.txt")
	assert.False(t, ok)
}
