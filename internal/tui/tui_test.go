package tui

import (
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/itemsync/internal/itemsync"
	"github.com/idilsaglam/itemsync/internal/model"
	"github.com/idilsaglam/itemsync/internal/store/memstore"
)

func setup(t *testing.T) (*itemsync.Syncer, *memstore.Store) {
	t.Helper()
	ms := memstore.New()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s := itemsync.New(ms, itemsync.WithLogger(logrus.NewEntry(logger)), itemsync.WithTimeout(time.Second))
	s.Start()
	t.Cleanup(func() {
		s.Stop()
		s.Wait()
		_ = ms.Close()
	})
	return s, ms
}

func keys(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var enter = tea.KeyMsg{Type: tea.KeyEnter}

func send(t *testing.T, m modelTUI, msgs ...tea.Msg) (modelTUI, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, msg := range msgs {
		var next tea.Model
		next, cmd = m.Update(msg)
		var ok bool
		m, ok = next.(modelTUI)
		require.True(t, ok)
	}
	return m, cmd
}

func eventually(t *testing.T, s *itemsync.Syncer, match func([]model.Item) bool) []model.Item {
	t.Helper()
	var items []model.Item
	require.Eventually(t, func() bool {
		items = s.Snapshot()
		return match(items)
	}, 3*time.Second, 10*time.Millisecond)
	return items
}

func TestSnapshotFillsList(t *testing.T) {
	s, _ := setup(t)
	m := newModel(s, nil, "items")

	m, _ = send(t, m, snapshotMsg{
		{ID: "1", Title: "Buy milk", Description: "2 liters"},
		{ID: "2", Title: "Call mom", Description: "Sunday"},
	})

	assert.Len(t, m.list.Items(), 2)
	assert.Equal(t, 2, m.count)
	assert.Contains(t, m.list.Title, "items")

	m, _ = send(t, m, snapshotMsg{})
	assert.Empty(t, m.list.Items())
}

func TestAddForm(t *testing.T) {
	s, _ := setup(t)
	m := newModel(s, nil, "items")

	m, _ = send(t, m, keys("a"))
	require.Equal(t, adding, m.mode)

	m, _ = send(t, m, keys("Buy milk"), enter)
	assert.Equal(t, fieldDescription, m.focus)

	m, cmd := send(t, m, keys("2 liters"), enter)
	assert.Equal(t, browsing, m.mode)
	require.NotNil(t, cmd)

	msg, ok := cmd().(resultMsg)
	require.True(t, ok)
	assert.NoError(t, msg.err)
	assert.Equal(t, itemsync.OpCreate, msg.op)

	items := eventually(t, s, func(items []model.Item) bool { return len(items) == 1 })
	assert.Equal(t, "Buy milk", items[0].Title)
	assert.Equal(t, "2 liters", items[0].Description)
}

func TestAddFormRequiresBothFields(t *testing.T) {
	s, ms := setup(t)
	m := newModel(s, nil, "items")

	m, _ = send(t, m, keys("a"), keys("Only title"), enter)
	m, cmd := send(t, m, enter)

	assert.Equal(t, adding, m.mode)
	assert.NotEmpty(t, m.formErr)
	assert.Nil(t, cmd)

	m, _ = send(t, m, tea.KeyMsg{Type: tea.KeyEscape})
	assert.Equal(t, browsing, m.mode)
	assert.Empty(t, m.inputs[fieldTitle].Value())

	s.Wait()
	assert.Equal(t, 0, ms.Len())
}

func TestEditReplacesSelectedItem(t *testing.T) {
	s, ms := setup(t)
	ms.Put("01A", []byte(`{"title":"Buy milk","description":"2 liters"}`))
	eventually(t, s, func(items []model.Item) bool { return len(items) == 1 })

	m := newModel(s, nil, "items")
	m, _ = send(t, m, snapshotMsg(s.Snapshot()), keys("e"))
	require.Equal(t, editing, m.mode)
	assert.Equal(t, "Buy milk", m.inputs[fieldTitle].Value())
	assert.Equal(t, "2 liters", m.inputs[fieldDescription].Value())

	m, cmd := send(t, m, tea.KeyMsg{Type: tea.KeyTab}, keys("!"), enter)
	assert.Equal(t, browsing, m.mode)
	require.NotNil(t, cmd)
	msg := cmd().(resultMsg)
	assert.NoError(t, msg.err)
	assert.Equal(t, itemsync.OpReplace, msg.op)

	items := eventually(t, s, func(items []model.Item) bool {
		return len(items) == 1 && items[0].Description == "2 liters!"
	})
	assert.Equal(t, "01A", items[0].ID)
}

func TestDeleteAndUndo(t *testing.T) {
	s, ms := setup(t)
	ms.Put("01A", []byte(`{"title":"Buy milk","description":"2 liters"}`))
	eventually(t, s, func(items []model.Item) bool { return len(items) == 1 })

	m := newModel(s, nil, "items")
	m, cmd := send(t, m, snapshotMsg(s.Snapshot()), keys("d"))
	require.NotNil(t, cmd)
	assert.NoError(t, cmd().(resultMsg).err)
	eventually(t, s, func(items []model.Item) bool { return len(items) == 0 })

	m, cmd = send(t, m, keys("u"))
	require.NotNil(t, cmd)
	assert.NoError(t, cmd().(resultMsg).err)
	assert.Nil(t, m.undoItem)

	items := eventually(t, s, func(items []model.Item) bool { return len(items) == 1 })
	assert.Equal(t, "Buy milk", items[0].Title)
	assert.NotEqual(t, "01A", items[0].ID)

	_, cmd = send(t, m, keys("u"))
	assert.Nil(t, cmd)
}

func TestFailedMutationShowsStatus(t *testing.T) {
	s, _ := setup(t)
	m := newModel(s, nil, "items")

	m, _ = send(t, m, resultMsg{op: itemsync.OpDelete, err: assert.AnError})
	assert.Contains(t, m.View(), "delete failed")
}

func TestQuit(t *testing.T) {
	s, _ := setup(t)
	m := newModel(s, nil, "items")

	_, cmd := send(t, m, keys("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestInitWaitsForSnapshot(t *testing.T) {
	s, _ := setup(t)
	updates, cancel := s.Observe()
	defer cancel()
	m := newModel(s, updates, "items")

	cmd := m.Init()
	require.NotNil(t, cmd)
	assert.Equal(t, snapshotMsg{}, cmd())

	closed := make(chan []model.Item)
	close(closed)
	assert.Nil(t, waitForSnapshot(closed)())
	assert.Nil(t, waitForSnapshot(nil))
}
