package mapedit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_DoUndoRedo(t *testing.T) {
	h := NewHistory()
	value := 0

	h.Do(&Action{
		Do:   func() { value = 1 },
		Undo: func() { value = 0 },
	})
	require.Equal(t, 1, value)
	require.Equal(t, 1, h.UndoDepth())

	require.True(t, h.Undo())
	assert.Equal(t, 0, value)
	assert.Equal(t, 0, h.UndoDepth())
	assert.Equal(t, 1, h.RedoDepth())

	require.True(t, h.Redo())
	assert.Equal(t, 1, value)
	assert.Equal(t, 1, h.UndoDepth())

	assert.False(t, h.Redo())
}

func TestHistory_UndoEmpty(t *testing.T) {
	h := NewHistory()
	assert.False(t, h.Undo())
	assert.False(t, h.Redo())
}

func TestHistory_Coalescing(t *testing.T) {
	h := NewHistory()
	target := &struct{}{}
	value := 100

	set := func(v, old int) *Action {
		return &Action{
			Target:     target,
			Param:      "value",
			Coalescing: true,
			Do:         func() { value = v },
			Undo:       func() { value = old },
		}
	}

	h.Do(set(160, 100))
	h.Do(set(164, 160))
	h.Do(set(168, 164))

	assert.Equal(t, 168, value)
	// Three edits of the same parameter collapse into one step.
	require.Equal(t, 1, h.UndoDepth())

	require.True(t, h.Undo())
	// A single undo rewinds to before the first edit.
	assert.Equal(t, 100, value)
}

func TestHistory_CoalescingKeyedByTargetAndParam(t *testing.T) {
	h := NewHistory()
	a := &struct{}{}
	b := &struct{}{}

	noop := func(target any, param string) *Action {
		return &Action{Target: target, Param: param, Coalescing: true, Do: func() {}, Undo: func() {}}
	}

	h.Do(noop(a, "x"))
	h.Do(noop(a, "y"))
	h.Do(noop(b, "y"))
	assert.Equal(t, 3, h.UndoDepth())

	h.Do(noop(b, "y"))
	assert.Equal(t, 3, h.UndoDepth())
}

func TestHistory_CoalescingKeepsRedo(t *testing.T) {
	h := NewHistory()
	target := &struct{}{}

	coal := func() *Action {
		return &Action{Target: target, Param: "p", Coalescing: true, Do: func() {}, Undo: func() {}}
	}

	h.Do(coal())
	h.Do(&Action{Do: func() {}, Undo: func() {}})
	require.True(t, h.Undo())
	require.Equal(t, 1, h.RedoDepth())

	// A coalescing replacement of the stack top leaves the redo stack
	// alone; only a genuine push clears it.
	h.Do(coal())
	assert.Equal(t, 1, h.RedoDepth())
	assert.Equal(t, 1, h.UndoDepth())

	h.Do(&Action{Do: func() {}, Undo: func() {}})
	assert.Equal(t, 0, h.RedoDepth())
}

func TestHistory_NonCoalescingPushes(t *testing.T) {
	h := NewHistory()
	target := &struct{}{}
	for i := 0; i < 3; i++ {
		h.Do(&Action{Target: target, Param: "p", Do: func() {}, Undo: func() {}})
	}
	assert.Equal(t, 3, h.UndoDepth())
}

func TestHistory_Clear(t *testing.T) {
	h := NewHistory()
	h.Do(&Action{Do: func() {}, Undo: func() {}})
	h.Do(&Action{Do: func() {}, Undo: func() {}})
	require.True(t, h.Undo())
	h.Clear()
	assert.Equal(t, 0, h.UndoDepth())
	assert.Equal(t, 0, h.RedoDepth())
}
