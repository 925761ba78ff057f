// Package engine 로컬 장면에 로컬/원격 드로잉 연산을 동일한 경로로 적용한다.
// 모든 연산은 id 기준 upsert/delete이며, 같은 id에 대해서는 마지막으로 적용된 쪽이 남는다.
package engine

import (
	"log"
	"math"

	"realtime-sketch/internal/history"
	"realtime-sketch/internal/model"
	"realtime-sketch/internal/scene"
)

// Tool 현재 선택된 도구
type Tool string

const (
	ToolSelect Tool = "select"
	ToolPen    Tool = "pen"
	ToolRect   Tool = "rect"
	ToolCircle Tool = "circle"
	ToolLine   Tool = "line"
	ToolText   Tool = "text"
	ToolEraser Tool = "eraser"
)

// 지우개 감쇠 상수
const (
	minEraserSize = 6.0
	maxEraserSize = 120.0
	eraserDivisor = 600.0
	minEraserStep = 0.04
	maxEraserStep = 0.22
	deleteOpacity = 0.02
)

// Emitter 외부로 나가는 이벤트 전송
type Emitter interface {
	Emit(event model.Event, payload any) error
}

// Engine 드로잉 동기화 엔진
type Engine struct {
	scene   *scene.Scene
	history *history.Manager
	emitter Emitter
	tool    Tool
}

// New 생성자 (emitter가 nil이면 전송하지 않음)
func New(sc *scene.Scene, hist *history.Manager, emitter Emitter) *Engine {
	e := &Engine{
		scene:   sc,
		history: hist,
		emitter: emitter,
		tool:    ToolSelect,
	}
	sc.SetInsertHook(e.gate)
	return e
}

// Scene 장면 반환
func (e *Engine) Scene() *scene.Scene {
	return e.scene
}

// History 히스토리 반환
func (e *Engine) History() *history.Manager {
	return e.history
}

// Tool 현재 도구
func (e *Engine) Tool() Tool {
	return e.tool
}

// SetTool 도구 변경 후 모든 오브젝트에 상호작용 규칙 재적용
func (e *Engine) SetTool(t Tool) {
	e.tool = t
	for _, o := range e.scene.Objects() {
		e.gate(o)
	}
}

// gate 선택 도구가 아니면 오브젝트가 입력을 가로채지 않도록 비활성화
func (e *Engine) gate(o *scene.Object) {
	interactive := e.tool == ToolSelect
	o.Selectable = interactive
	o.Evented = interactive
}

// ApplyRemoteUpsert 원격 오브젝트 병합
// 메시지 하나당 히스토리 한 번 저장
func (e *Engine) ApplyRemoteUpsert(attrs map[string]any) error {
	var err error
	e.history.Hold(func() {
		_, _, err = e.scene.Put(attrs)
	})
	if err != nil {
		return err
	}
	e.history.Capture()
	return nil
}

// ApplyRemoteDelete 원격 삭제 (없는 id는 무시)
func (e *Engine) ApplyRemoteDelete(id string) bool {
	if _, ok := e.scene.Get(id); !ok {
		return false
	}

	e.history.Hold(func() {
		e.scene.Remove(id)
	})
	e.history.Capture()
	return true
}

// ApplyLocalOperation 로컬 오브젝트 병합 후 전체 오브젝트 전송
func (e *Engine) ApplyLocalOperation(attrs map[string]any) (*scene.Object, error) {
	var (
		o   *scene.Object
		err error
	)
	e.history.Hold(func() {
		o, _, err = e.scene.Put(attrs)
	})
	if err != nil {
		return nil, err
	}
	e.history.Capture()

	e.emit(model.EventDrawingData, o.Map())
	return o, nil
}

// DeleteLocal 로컬 삭제 후 전송 (없는 id는 무시)
func (e *Engine) DeleteLocal(id string) bool {
	if _, ok := e.scene.Get(id); !ok {
		return false
	}

	e.history.Hold(func() {
		e.scene.Remove(id)
	})
	e.history.Capture()

	e.emit(model.EventDeleteObject, model.DeletePayload{ID: id})
	return true
}

// EraserStep 지우개 크기에 따른 1회 감쇠량
func EraserStep(radius float64) float64 {
	size := math.Max(minEraserSize, math.Min(maxEraserSize, 2*radius))
	return math.Max(minEraserStep, math.Min(maxEraserStep, size/eraserDivisor))
}

// EraseResult 지우개 한 번의 결과
type EraseResult struct {
	Faded   []string // 불투명도만 줄어든 오브젝트
	Deleted []string // 삭제된 오브젝트
}

// Touched 영향을 받은 오브젝트 수
func (r EraseResult) Touched() int {
	return len(r.Faded) + len(r.Deleted)
}

// EraseAtPoint 원 안에 걸친 모든 오브젝트의 불투명도 감소
// 0.02 이하가 되면 삭제, 아니면 감쇠된 오브젝트 전송
func (e *Engine) EraseAtPoint(x, y, radius float64) EraseResult {
	var result EraseResult
	step := EraserStep(radius)

	e.history.Hold(func() {
		objects := e.scene.Objects()
		// 위에 있는 오브젝트부터
		for i := len(objects) - 1; i >= 0; i-- {
			o := objects[i]
			if !o.Bounds().IntersectsDisc(x, y, radius) {
				continue
			}

			next := math.Max(0, o.Opacity()-step)
			if next <= deleteOpacity {
				e.scene.Remove(o.ID)
				result.Deleted = append(result.Deleted, o.ID)
				e.emit(model.EventDeleteObject, model.DeletePayload{ID: o.ID})
				continue
			}

			o.SetOpacity(next)
			result.Faded = append(result.Faded, o.ID)
			e.emit(model.EventDrawingData, o.Map())
		}
	})

	if result.Touched() > 0 {
		e.history.Capture()
	}
	return result
}

// Undo 로컬 실행 취소 (원격으로 전송하지 않음)
func (e *Engine) Undo() bool {
	return e.history.Undo()
}

// Redo 로컬 다시 실행 (원격으로 전송하지 않음)
func (e *Engine) Redo() bool {
	return e.history.Redo()
}

func (e *Engine) emit(event model.Event, payload any) {
	if e.emitter == nil {
		return
	}
	if err := e.emitter.Emit(event, payload); err != nil {
		// 로컬 상태는 유지, 다음 변경 때 다시 전송됨
		log.Printf("[Engine] ⚠️ emit %s failed: %v", event, err)
	}
}
