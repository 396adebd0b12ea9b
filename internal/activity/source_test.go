package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitter_FiltersByKind(t *testing.T) {
	e := NewEmitter()
	var got []Kind
	detach := e.Listen([]Kind{KindKey, KindTouch}, func(k Kind) { got = append(got, k) })

	e.Emit(KindKey)
	e.Emit(KindPointer)
	e.Emit(KindTouch)
	assert.Equal(t, []Kind{KindKey, KindTouch}, got)

	detach()
	e.Emit(KindKey)
	assert.Len(t, got, 2)
	assert.Zero(t, e.ListenerCount())
}

func TestEmitter_ListenerMayDetachDuringEmit(t *testing.T) {
	e := NewEmitter()
	var detach func()
	calls := 0
	detach = e.OnVisibilityChange(func(bool) {
		calls++
		detach()
	})

	assert.NotPanics(t, func() { e.SetVisible(false) })
	e.SetVisible(true)
	assert.Equal(t, 1, calls)
}
