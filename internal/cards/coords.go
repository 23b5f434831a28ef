// Package cards holds the card-generation workflow: the coordinate model,
// the CSV and photo-archive contracts, and the generation wizard itself.
package cards

import (
	"fmt"
	"strconv"

	"github.com/capmis/capmis-console/internal/capmis"
)

// Overlay fields drawn onto a template during generation.
const (
	FieldPhoto        = "photo"
	FieldName         = "name"
	FieldClass        = "class"
	FieldLevel        = "level"
	FieldGender       = "gender"
	FieldResidence    = "residence"
	FieldAcademicYear = "academic_year"
)

func OverlayFields() []string {
	return []string{
		FieldPhoto, FieldName, FieldClass, FieldLevel,
		FieldGender, FieldResidence, FieldAcademicYear,
	}
}

type Axis string

const (
	AxisX        Axis = "x"
	AxisY        Axis = "y"
	AxisWidth    Axis = "width"
	AxisHeight   Axis = "height"
	AxisMaxWidth Axis = "maxWidth"
)

// Position is one overlay slot in template pixel space.
type Position struct {
	X        int `json:"x"`
	Y        int `json:"y"`
	Width    int `json:"width,omitempty"`
	Height   int `json:"height,omitempty"`
	MaxWidth int `json:"maxWidth,omitempty"`
}

type CoordinateMap map[string]Position

// DefaultCoordinates fits the stock 850x478 template.
func DefaultCoordinates() CoordinateMap {
	return CoordinateMap{
		FieldPhoto:        {X: 60, Y: 140, Width: 160, Height: 190},
		FieldName:         {X: 260, Y: 160, MaxWidth: 520},
		FieldClass:        {X: 260, Y: 210, MaxWidth: 240},
		FieldLevel:        {X: 260, Y: 250, MaxWidth: 240},
		FieldGender:       {X: 540, Y: 210, MaxWidth: 160},
		FieldResidence:    {X: 260, Y: 290, MaxWidth: 400},
		FieldAcademicYear: {X: 540, Y: 250, MaxWidth: 200},
	}
}

// Set updates a single axis of a single field. Non-numeric input stores 0;
// the other axes of the field are left untouched.
func (m CoordinateMap) Set(field string, axis Axis, raw string) error {
	pos, ok := m[field]
	if !ok {
		return fmt.Errorf("unknown overlay field %q", field)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		v = 0
	}
	switch axis {
	case AxisX:
		pos.X = v
	case AxisY:
		pos.Y = v
	case AxisWidth:
		pos.Width = v
	case AxisHeight:
		pos.Height = v
	case AxisMaxWidth:
		pos.MaxWidth = v
	default:
		return fmt.Errorf("unknown axis %q", axis)
	}
	m[field] = pos
	return nil
}

// Clamp bounds every position to the template. The backend contract for
// out-of-range values is unspecified, so the console never sends any.
func (m CoordinateMap) Clamp(d capmis.Dimensions) {
	for field, pos := range m {
		pos.X = clampInt(pos.X, 0, d.Width)
		pos.Y = clampInt(pos.Y, 0, d.Height)
		pos.Width = clampInt(pos.Width, 0, d.Width)
		pos.Height = clampInt(pos.Height, 0, d.Height)
		pos.MaxWidth = clampInt(pos.MaxWidth, 0, d.Width)
		m[field] = pos
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
