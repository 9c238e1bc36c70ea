// Package editor holds the pointer-driven positioning logic of the template
// editor. A Session tracks one canvas showing one page; it converts pointer
// coordinates in canvas pixels to millimetre positions and reports selection
// and movement through a Listener.
//
// A Session is not safe for concurrent use. Pointer events for one canvas are
// delivered sequentially.
package editor

import (
	"math"

	"github.com/itakecare/leazr-docgen/model"
	"github.com/itakecare/leazr-docgen/units"
)

// State is the drag state of a session.
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Listener receives editor events. An empty field id in FieldSelected means
// the selection was cleared.
type Listener interface {
	FieldSelected(fieldID string)
	FieldMoved(fieldID string, pos model.Position)
}

type nopListener struct{}

func (nopListener) FieldSelected(string)               {}
func (nopListener) FieldMoved(string, model.Position) {}

// Session is the positioning state machine of one canvas.
type Session struct {
	page     model.Page
	fields   []model.Field
	zoom     float64
	listener Listener

	state    State
	selected string
	dragID   string
	offsetX  float64 // pointer offset inside the dragged field, in pixels
	offsetY  float64
}

// NewSession starts a session for page showing fields at zoom. Fields on other
// pages are kept but never hit. A nil listener discards events.
func NewSession(page model.Page, fields []model.Field, zoom float64, l Listener) *Session {
	if l == nil {
		l = nopListener{}
	}
	fs := make([]model.Field, len(fields))
	for i, f := range fields {
		fs[i] = f.Clone()
	}
	return &Session{
		page:     page,
		fields:   fs,
		zoom:     units.ClampZoom(zoom),
		listener: l,
	}
}

// State returns the current drag state.
func (s *Session) State() State { return s.state }

// Selected returns the selected field id, or "" when nothing is selected.
func (s *Session) Selected() string { return s.selected }

// Zoom returns the current zoom factor.
func (s *Session) Zoom() float64 { return s.zoom }

// Fields returns a copy of the fields with their current positions.
func (s *Session) Fields() []model.Field {
	out := make([]model.Field, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Clone()
	}
	return out
}

// SetZoom changes the zoom factor, clamped to the supported range. A drag in
// progress is ended because its pixel offset no longer applies.
func (s *Session) SetZoom(z float64) {
	s.endDrag()
	s.zoom = units.ClampZoom(z)
}

// PointerDown starts dragging the field under the pointer. A press on empty
// canvas clears the selection and leaves the session idle.
func (s *Session) PointerDown(px, py float64) {
	s.endDrag()

	i := s.hit(px, py)
	if i < 0 {
		s.clearSelection()
		return
	}

	f := s.fields[i]
	s.state = Dragging
	s.dragID = f.ID
	s.offsetX = px - units.MmToPixels(f.Position.X, s.zoom)
	s.offsetY = py - units.MmToPixels(f.Position.Y, s.zoom)
	s.selected = f.ID
	s.listener.FieldSelected(f.ID)
}

// PointerMove moves the dragged field so that the pointer keeps its offset
// inside the field. The new position is clamped to the page and rounded to a
// tenth of a millimetre. It does nothing while idle.
func (s *Session) PointerMove(px, py float64) {
	if s.state != Dragging {
		return
	}
	i := s.index(s.dragID)
	if i < 0 {
		s.endDrag()
		return
	}

	// Bounds are floored to a tenth so a rounded position never leaves the page.
	maxX := math.Floor(s.page.WidthMm()*10) / 10
	maxY := math.Floor(s.page.HeightMm()*10) / 10
	pos := model.Position{
		X:    units.Clamp(units.RoundTenth(units.PixelsToMm(px-s.offsetX, s.zoom)), 0, maxX),
		Y:    units.Clamp(units.RoundTenth(units.PixelsToMm(py-s.offsetY, s.zoom)), 0, maxY),
		Page: s.fields[i].Position.Page,
	}

	s.fields[i].Position = pos
	s.listener.FieldMoved(s.dragID, pos)
}

// PointerUp ends the drag.
func (s *Session) PointerUp() { s.endDrag() }

// PointerLeave ends the drag when the pointer leaves the canvas.
func (s *Session) PointerLeave() { s.endDrag() }

// Reset returns the session to Idle after an interrupted gesture.
func (s *Session) Reset() { s.endDrag() }

// Click selects the first field under the point without starting a drag.
// Missing every field clears the selection.
func (s *Session) Click(px, py float64) {
	if i := s.hit(px, py); i >= 0 {
		s.selected = s.fields[i].ID
		s.listener.FieldSelected(s.selected)
		return
	}
	s.clearSelection()
}

func (s *Session) endDrag() {
	s.state = Idle
	s.dragID = ""
	s.offsetX, s.offsetY = 0, 0
}

func (s *Session) clearSelection() {
	s.selected = ""
	s.listener.FieldSelected("")
}

// hit returns the index of the first field on the session page, in stored
// order, whose box contains the pixel point.
func (s *Session) hit(px, py float64) int {
	x := units.PixelsToMm(px, s.zoom)
	y := units.PixelsToMm(py, s.zoom)
	for i, f := range s.fields {
		if f.Position.Page != s.page.Number {
			continue
		}
		if f.Bounds().Contains(x, y) {
			return i
		}
	}
	return -1
}

func (s *Session) index(id string) int {
	for i, f := range s.fields {
		if f.ID == id {
			return i
		}
	}
	return -1
}
