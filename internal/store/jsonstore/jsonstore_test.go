package jsonstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/itemsync/internal/model"
	"github.com/idilsaglam/itemsync/internal/store"
	"github.com/idilsaglam/itemsync/internal/store/storetest"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "items.json")
	s, err := Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Collection {
		s, _ := openTemp(t)
		return s
	})
}

func TestFileIsReadable(t *testing.T) {
	s, path := openTemp(t)

	id, err := s.Create(context.Background(), model.Item{Title: "Buy milk", Description: "2 liters"})
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"`+id+`","title":"Buy milk","description":"2 liters"}]`, string(b))
}

func TestExternalChangeIsPublished(t *testing.T) {
	s, path := openTemp(t)

	rec := storetest.NewRecorder()
	sub := s.Subscribe(rec.Func)
	defer sub.Unsubscribe()
	rec.Next(t)

	external := `[{"id":"ext-1","title":"From elsewhere","description":"edited by hand"}]`
	require.NoError(t, os.WriteFile(path, []byte(external), 0o644))

	n := rec.WaitFor(t, storetest.HasLen(1))
	assert.Equal(t, []model.Item{{ID: "ext-1", Title: "From elsewhere", Description: "edited by hand"}},
		storetest.Decode(t, n.Docs))
}

func TestCorruptFileIsFailure(t *testing.T) {
	s, path := openTemp(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	rec := storetest.NewRecorder()
	sub := s.Subscribe(rec.Func)
	defer sub.Unsubscribe()

	assert.True(t, rec.Next(t).Failed())

	_, err := s.Create(context.Background(), model.Item{Title: "A", Description: "B"})
	assert.ErrorContains(t, err, "json unmarshal")
}

func TestUndecodableElementsSurviveRewrites(t *testing.T) {
	s, path := openTemp(t)
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"bad","title":42},{"id":"ok","title":"T","description":"D"}]`), 0o644))

	require.NoError(t, s.Delete(context.Background(), "ok"))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"bad","title":42}]`, string(b))

	rec := storetest.NewRecorder()
	sub := s.Subscribe(rec.Func)
	defer sub.Unsubscribe()
	n := rec.Next(t)
	require.Len(t, n.Docs, 1)
	var it model.Item
	assert.Error(t, n.Docs[0].DataTo(&it))
}

func TestHandWrittenItemsGetStableIDs(t *testing.T) {
	s, path := openTemp(t)
	require.NoError(t, os.WriteFile(path, []byte(`[{"title":"Buy milk","description":"2 liters"},{}]`), 0o644))

	rec := storetest.NewRecorder()
	sub := s.Subscribe(rec.Func)
	defer sub.Unsubscribe()

	items := storetest.Decode(t, rec.Next(t).Docs)
	require.Len(t, items, 2)
	id := items[0].ID
	require.NotEmpty(t, id)
	require.NotEmpty(t, items[1].ID)
	assert.NotEqual(t, id, items[1].ID)
	assert.Equal(t, "Buy milk", items[0].Title)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), id)

	require.NoError(t, s.Delete(context.Background(), id))
	n := rec.WaitFor(t, storetest.HasLen(1))
	assert.Equal(t, items[1].ID, n.Docs[0].ID())
}
