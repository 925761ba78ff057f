package scene

import (
	"encoding/json"
	"errors"
	"math"
)

// ErrMissingID id가 없는 오브젝트
var ErrMissingID = errors.New("drawing object without id")

// Rect 축 정렬 경계 상자
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// IntersectsDisc 원(cx, cy, r)과 겹치는지 (가장 가까운 점까지의 거리 기준)
func (r Rect) IntersectsDisc(cx, cy, radius float64) bool {
	nx := math.Max(r.MinX, math.Min(cx, r.MaxX))
	ny := math.Max(r.MinY, math.Min(cy, r.MaxY))
	dx, dy := cx-nx, cy-ny
	return dx*dx+dy*dy <= radius*radius
}

// Object 드로잉 오브젝트 (id + 자유 형식 속성)
type Object struct {
	ID    string
	Attrs map[string]any

	// 로컬 전용 상호작용 플래그 (직렬화되지 않음)
	Selectable bool
	Evented    bool

	bounds Rect
}

// NewObject 속성 맵에서 오브젝트 생성
func NewObject(attrs map[string]any) (*Object, error) {
	id, _ := attrs["id"].(string)
	if id == "" {
		return nil, ErrMissingID
	}

	o := &Object{
		ID:         id,
		Attrs:      make(map[string]any, len(attrs)),
		Selectable: true,
		Evented:    true,
	}
	o.merge(attrs)
	return o, nil
}

// merge 속성 덮어쓰기 (id는 변경 불가) 후 경계 재계산
func (o *Object) merge(attrs map[string]any) {
	for k, v := range attrs {
		if k == "id" {
			continue
		}
		o.Attrs[k] = v
	}
	o.bounds = computeBounds(o.Attrs)
}

// Kind 오브젝트 종류 ("type", 없으면 "kind")
func (o *Object) Kind() string {
	if k, ok := o.Attrs["type"].(string); ok && k != "" {
		return k
	}
	k, _ := o.Attrs["kind"].(string)
	return k
}

// Opacity 불투명도 (없으면 1)
func (o *Object) Opacity() float64 {
	if v, ok := number(o.Attrs["opacity"]); ok {
		return v
	}
	return 1
}

// SetOpacity 불투명도 설정 ([0,1]로 제한)
func (o *Object) SetOpacity(v float64) {
	o.Attrs["opacity"] = math.Max(0, math.Min(1, v))
}

// Bounds 경계 상자
func (o *Object) Bounds() Rect {
	return o.bounds
}

// Map id를 포함한 평면 속성 맵 (전송용 복사본)
func (o *Object) Map() map[string]any {
	m := make(map[string]any, len(o.Attrs)+1)
	for k, v := range o.Attrs {
		m[k] = v
	}
	m["id"] = o.ID
	return m
}

// MarshalJSON {id, ...attrs}
func (o *Object) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Map())
}

// computeBounds 속성에서 대략적인 경계 상자 계산
// points(폴리라인) > radius(원) > width/height 순으로 사용
func computeBounds(attrs map[string]any) Rect {
	left, _ := number(attrs["left"])
	top, _ := number(attrs["top"])
	scaleX := numberOr(attrs["scaleX"], 1)
	scaleY := numberOr(attrs["scaleY"], 1)

	var r Rect
	switch {
	case hasPoints(attrs["points"]):
		r = pointsBounds(attrs["points"])
	default:
		var w, h float64
		if radius, ok := number(attrs["radius"]); ok {
			w, h = 2*radius, 2*radius
		} else {
			w, _ = number(attrs["width"])
			h, _ = number(attrs["height"])
		}
		w *= scaleX
		h *= scaleY

		if origin, _ := attrs["originX"].(string); origin == "center" {
			left -= w / 2
		}
		if origin, _ := attrs["originY"].(string); origin == "center" {
			top -= h / 2
		}
		r = Rect{MinX: left, MinY: top, MaxX: left + w, MaxY: top + h}
	}

	if stroke, ok := number(attrs["strokeWidth"]); ok && stroke > 0 {
		half := stroke / 2
		r.MinX -= half
		r.MinY -= half
		r.MaxX += half
		r.MaxY += half
	}
	return r
}

func hasPoints(v any) bool {
	list, ok := v.([]any)
	return ok && len(list) > 0
}

func pointsBounds(v any) Rect {
	r := Rect{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, raw := range v.([]any) {
		p, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		x, okX := number(p["x"])
		y, okY := number(p["y"])
		if !okX || !okY {
			continue
		}
		r.MinX = math.Min(r.MinX, x)
		r.MinY = math.Min(r.MinY, y)
		r.MaxX = math.Max(r.MaxX, x)
		r.MaxY = math.Max(r.MaxY, y)
	}
	if math.IsInf(r.MinX, 1) {
		return Rect{}
	}
	return r
}

func numberOr(v any, def float64) float64 {
	if n, ok := number(v); ok {
		return n
	}
	return def
}

// number JSON 디코딩 결과 또는 Go 숫자 타입을 float64로
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
