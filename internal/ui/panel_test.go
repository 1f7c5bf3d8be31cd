package ui

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/itemsync/internal/model"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	SetOutput(&out, &errOut)
	t.Cleanup(func() { SetOutput(os.Stdout, os.Stderr) })
	return &out, &errOut
}

func TestPanelAlignsRows(t *testing.T) {
	SetTheme("mono")
	t.Cleanup(func() { SetTheme("classic") })
	out, _ := capture(t)

	Panel([]string{"short", "a longer line"})

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "+---------------+", lines[0])
	assert.Equal(t, "| short         |", lines[1])
	assert.Equal(t, "| a longer line |", lines[2])
	assert.Equal(t, lines[0], lines[3])
}

func TestItemLines(t *testing.T) {
	SetTheme("mono")
	t.Cleanup(func() { SetTheme("classic") })

	assert.Equal(t, []string{"no items"}, ItemLines(nil))

	lines := ItemLines([]model.Item{
		{ID: "01A", Title: "Buy milk", Description: "2 liters"},
		{ID: "01B", Title: "Call mom"},
	})
	assert.Equal(t, " 1. - Buy milk - 2 liters  01A", lines[0])
	assert.Equal(t, " 2. - Call mom  01B", lines[1])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "çççç...", Truncate("ççççççççç", 7))
}

func TestOKAndFail(t *testing.T) {
	SetTheme("mono")
	t.Cleanup(func() { SetTheme("classic") })
	out, errOut := capture(t)

	OK("added")
	Fail("boom")

	assert.Equal(t, "✔ added\n", out.String())
	assert.Equal(t, "✖ boom\n", errOut.String())
}
