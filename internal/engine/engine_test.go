package engine

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime-sketch/internal/history"
	"realtime-sketch/internal/model"
	"realtime-sketch/internal/scene"
)

type emitted struct {
	event   model.Event
	payload string
}

type recordingEmitter struct {
	sent []emitted
	fail error
}

func (r *recordingEmitter) Emit(event model.Event, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	r.sent = append(r.sent, emitted{event: event, payload: string(data)})
	return r.fail
}

func newEngine() (*Engine, *recordingEmitter) {
	sc := scene.New()
	em := &recordingEmitter{}
	return New(sc, history.New(sc), em), em
}

func rect(id string, left float64) map[string]any {
	return map[string]any{"id": id, "type": "rect", "left": left, "top": 0.0, "width": 10.0, "height": 10.0}
}

func TestLastWriteWins(t *testing.T) {
	e, _ := newEngine()

	require.NoError(t, e.ApplyRemoteUpsert(map[string]any{"id": "s1", "type": "rect", "fill": "#111"}))
	_, err := e.ApplyLocalOperation(map[string]any{"id": "s1", "type": "rect", "fill": "#222"})
	require.NoError(t, err)
	require.NoError(t, e.ApplyRemoteUpsert(map[string]any{"id": "s1", "type": "rect", "fill": "#333"}))

	o, ok := e.Scene().Get("s1")
	require.True(t, ok)
	assert.Equal(t, "#333", o.Attrs["fill"])
	assert.Equal(t, 1, e.Scene().Len())
}

func TestRemoteUpsertCapturesOncePerMessage(t *testing.T) {
	e, em := newEngine()

	require.NoError(t, e.ApplyRemoteUpsert(rect("a", 0)))
	require.NoError(t, e.ApplyRemoteUpsert(rect("a", 5)))

	assert.Equal(t, 3, e.History().Len())
	assert.Empty(t, em.sent, "remote operations are never echoed")
}

func TestRemoteUpsertRejectsMissingID(t *testing.T) {
	e, _ := newEngine()

	err := e.ApplyRemoteUpsert(map[string]any{"type": "rect"})
	assert.ErrorIs(t, err, scene.ErrMissingID)
	assert.Equal(t, 1, e.History().Len())
}

func TestRemoteDeleteIsIdempotent(t *testing.T) {
	e, _ := newEngine()
	require.NoError(t, e.ApplyRemoteUpsert(rect("a", 0)))

	assert.True(t, e.ApplyRemoteDelete("a"))
	historyLen := e.History().Len()

	assert.False(t, e.ApplyRemoteDelete("a"))
	assert.False(t, e.ApplyRemoteDelete("never-existed"))
	assert.Equal(t, historyLen, e.History().Len())
	assert.Zero(t, e.Scene().Len())
}

func TestLocalOperationEmitsFullObject(t *testing.T) {
	e, em := newEngine()

	_, err := e.ApplyLocalOperation(rect("s1", 3))
	require.NoError(t, err)
	_, err = e.ApplyLocalOperation(map[string]any{"id": "s1", "fill": "#abc"})
	require.NoError(t, err)

	require.Len(t, em.sent, 2)
	assert.Equal(t, model.EventDrawingData, em.sent[1].event)
	assert.JSONEq(t, `{"id":"s1","type":"rect","left":3,"top":0,"width":10,"height":10,"fill":"#abc"}`, em.sent[1].payload)
}

func TestLocalAndRemotePathsConverge(t *testing.T) {
	local, em := newEngine()
	remote, _ := newEngine()

	_, err := local.ApplyLocalOperation(map[string]any{"id": "s1", "type": "circle", "radius": 4.0, "left": 1.0})
	require.NoError(t, err)

	var attrs map[string]any
	require.NoError(t, json.Unmarshal([]byte(em.sent[0].payload), &attrs))
	require.NoError(t, remote.ApplyRemoteUpsert(attrs))

	a, err := local.Scene().Snapshot()
	require.NoError(t, err)
	b, err := remote.Scene().Snapshot()
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestEmitFailureKeepsLocalState(t *testing.T) {
	e, em := newEngine()
	em.fail = errors.New("not connected")

	_, err := e.ApplyLocalOperation(rect("s1", 0))
	require.NoError(t, err)
	_, ok := e.Scene().Get("s1")
	assert.True(t, ok)
}

func TestDeleteLocal(t *testing.T) {
	e, em := newEngine()
	_, _ = e.ApplyLocalOperation(rect("s1", 0))

	assert.True(t, e.DeleteLocal("s1"))
	assert.False(t, e.DeleteLocal("s1"))

	require.Len(t, em.sent, 2)
	assert.Equal(t, model.EventDeleteObject, em.sent[1].event)
	assert.JSONEq(t, `{"id":"s1"}`, em.sent[1].payload)
}

func TestEraserStep(t *testing.T) {
	assert.InDelta(t, 0.04, EraserStep(1), 1e-9, "tiny eraser clamps to the minimum step")
	assert.InDelta(t, 0.05, EraserStep(15), 1e-9)
	assert.InDelta(t, 0.1, EraserStep(30), 1e-9)
	assert.InDelta(t, 0.2, EraserStep(60), 1e-9)
	assert.InDelta(t, 0.2, EraserStep(500), 1e-9, "size clamps to 120 first")

	prev := 0.0
	for r := 1.0; r <= 100; r++ {
		step := EraserStep(r)
		assert.GreaterOrEqual(t, step, prev)
		assert.LessOrEqual(t, step, 0.22)
		prev = step
	}
}

func TestEraseDecaysThenDeletesOnce(t *testing.T) {
	e, em := newEngine()
	require.NoError(t, e.ApplyRemoteUpsert(rect("s1", 0)))

	var deletes, fades int
	prevOpacity := 1.0
	for i := 0; i < 20; i++ {
		res := e.EraseAtPoint(5, 5, 30)
		deletes += len(res.Deleted)
		fades += len(res.Faded)

		o, ok := e.Scene().Get("s1")
		if !ok {
			break
		}
		assert.Less(t, o.Opacity(), prevOpacity)
		prevOpacity = o.Opacity()
	}

	assert.Equal(t, 1, deletes)
	assert.Equal(t, 9, fades, "opacity 1.0 with step 0.1 fades nine times before deletion")
	_, ok := e.Scene().Get("s1")
	assert.False(t, ok)

	// 이미 지워진 오브젝트는 다시 지워지지 않음
	res := e.EraseAtPoint(5, 5, 30)
	assert.Zero(t, res.Touched())

	last := em.sent[len(em.sent)-1]
	assert.Equal(t, model.EventDeleteObject, last.event)
	assert.JSONEq(t, `{"id":"s1"}`, last.payload)
}

func TestEraseOnlyTouchesIntersectingObjects(t *testing.T) {
	e, _ := newEngine()
	require.NoError(t, e.ApplyRemoteUpsert(rect("near", 0)))
	require.NoError(t, e.ApplyRemoteUpsert(rect("far", 500)))
	before := e.History().Len()

	res := e.EraseAtPoint(5, 5, 10)
	assert.Equal(t, []string{"near"}, res.Faded)
	assert.Equal(t, before+1, e.History().Len(), "one capture per erase pass")

	res = e.EraseAtPoint(1000, 1000, 5)
	assert.Zero(t, res.Touched())
	assert.Equal(t, before+1, e.History().Len())
}

func TestToolGating(t *testing.T) {
	e, _ := newEngine()
	require.NoError(t, e.ApplyRemoteUpsert(rect("a", 0)))

	a, _ := e.Scene().Get("a")
	assert.True(t, a.Selectable)

	e.SetTool(ToolPen)
	assert.False(t, a.Selectable)
	assert.False(t, a.Evented)

	// 새로 병합된 오브젝트에도 적용
	require.NoError(t, e.ApplyRemoteUpsert(rect("b", 20)))
	b, _ := e.Scene().Get("b")
	assert.False(t, b.Selectable)

	// 복원된 오브젝트에도 적용
	require.True(t, e.Undo())
	a, _ = e.Scene().Get("a")
	assert.False(t, a.Evented)

	e.SetTool(ToolSelect)
	assert.True(t, a.Selectable)
	assert.True(t, a.Evented)
}

func TestUndoIsLocalOnly(t *testing.T) {
	e, em := newEngine()
	_, _ = e.ApplyLocalOperation(rect("s1", 0))
	sent := len(em.sent)

	require.True(t, e.Undo())
	assert.Zero(t, e.Scene().Len())
	require.True(t, e.Redo())
	assert.Equal(t, 1, e.Scene().Len())
	assert.Len(t, em.sent, sent)
}
