package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase_TakeEvent_RequiresExactlyOneQueuedEvent(t *testing.T) {
	b := NewBase("m", Declaration{Imported: []EventKind{"A"}})

	// empty queue
	assert.PanicsWithValue(t,
		&DeliveryViolation{Model: "m", Message: "external transition expects exactly 1 queued event, found 0"},
		func() { b.TakeEvent() })

	// two queued events
	b.enqueue(NewEvent("A", "m", 0, nil))
	b.enqueue(NewEvent("A", "m", 0, nil))
	assert.Panics(t, func() { b.TakeEvent() })

	// exactly one
	b.reset(0)
	b.enqueue(NewEvent("A", "m", time.Second, 1.5))
	ev := b.TakeEvent()
	assert.Equal(t, 1.5, ev.Float())
	assert.Empty(t, b.queue)
}

func TestBase_StatusDrivesDefaultTimeAdvance(t *testing.T) {
	b := NewBase("m", Declaration{})
	assert.Equal(t, Infinity, b.TimeAdvance())

	b.MarkPendingRecompute()
	assert.Equal(t, PendingRecompute, b.Status())
	assert.Equal(t, time.Duration(0), b.TimeAdvance())

	b.MarkClean()
	assert.Equal(t, Infinity, b.TimeAdvance())
}

func TestBase_DeclaringAVariableTwicePanics(t *testing.T) {
	b := NewBase("m", Declaration{})
	b.Export("x", Float64)
	assert.Panics(t, func() { b.Import("x", Float64) })
}

func TestBase_KindsAreSorted(t *testing.T) {
	b := NewBase("m", Declaration{Imported: []EventKind{"Z", "A"}, Exported: []EventKind{"Q", "B"}})
	assert.Equal(t, []EventKind{"A", "Z"}, b.ImportedEvents())
	assert.Equal(t, []EventKind{"B", "Q"}, b.ExportedEvents())
}

func TestVariable_SetTypeChecks(t *testing.T) {
	b := NewBase("m", Declaration{})
	v := b.Export("x", Float64)

	assert.Panics(t, func() { v.Set(int64(3), 0) })

	v.Set(2.5, time.Hour)
	assert.True(t, v.IsSet())
	assert.Equal(t, time.Hour, v.SetAt())
	assert.Equal(t, 2.5, v.Float())
}

func TestVariable_ReadBeforeWriteIsUndefined(t *testing.T) {
	b := NewBase("m", Declaration{})
	v := b.Import("x", Bool)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		pv, ok := r.(*PreconditionViolation)
		require.True(t, ok)
		assert.Equal(t, "m", pv.Model)
	}()
	v.Bool()
}

func TestEvent_TypedPayloadAccessors(t *testing.T) {
	assert.Equal(t, 50.0, NewEvent("SetPower", "lamp", 0, 50).Float())
	assert.Equal(t, "eco", NewEvent("Mode", "pump", 0, "eco").Text())
	assert.Panics(t, func() { NewEvent("SetPower", "lamp", 0, "fifty").Float() })
	assert.Panics(t, func() { NewEvent("Mode", "pump", 0, 3).Text() })
}

func TestRecoverViolation_ReraisesForeignPanics(t *testing.T) {
	pv := &PreconditionViolation{Message: "x"}
	assert.Same(t, pv, recoverViolation(pv))
	assert.PanicsWithValue(t, "boom", func() { _ = recoverViolation("boom") })
}
