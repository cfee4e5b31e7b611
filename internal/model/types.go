package model

import (
	"encoding/json"
	"fmt"
)

// Default page size (A4 portrait, points) used when a template page has no
// usable MediaBox.
const (
	DefaultPageWidth  = 595.0
	DefaultPageHeight = 842.0
)

// Alignment is the horizontal placement of text inside a field.
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// VerticalAlignment is the vertical placement of text inside a field.
type VerticalAlignment string

const (
	VAlignTop      VerticalAlignment = "top"
	VAlignMiddle   VerticalAlignment = "middle"
	VAlignBottom   VerticalAlignment = "bottom"
	VAlignBaseline VerticalAlignment = "baseline"
)

// FitMode controls how an image is placed inside its field box.
type FitMode string

const (
	FitFill      FitMode = "fill"
	FitContain   FitMode = "contain"
	FitCover     FitMode = "cover"
	FitScaleDown FitMode = "scaledown"
)

// TextOverflow controls whether text may be drawn outside the field box.
type TextOverflow string

const (
	OverflowVisible TextOverflow = "overflow"
	OverflowCutoff  TextOverflow = "cutoff"
)

// ParseTextOverflow maps a flag value to a TextOverflow. Anything other than
// "cutoff" means overflow.
func ParseTextOverflow(s string) TextOverflow {
	if TextOverflow(s) == OverflowCutoff {
		return OverflowCutoff
	}
	return OverflowVisible
}

// PageGeometry is the size of one template page in points.
type PageGeometry struct {
	Index  int     `json:"index"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FieldData is one placement on the template together with the value to
// draw there. Coordinates use a top-left origin in points.
type FieldData struct {
	FieldID           string
	Page              int
	X                 float64
	Y                 float64
	Width             float64
	Height            float64
	Value             FieldValue
	FontSize          float64 // 0 means unset
	Alignment         Alignment
	VerticalAlignment VerticalAlignment
	Options           []string
	FitMode           FitMode      // empty means contain
	TextOverflow      TextOverflow // empty means overflow
}

type fieldDataJSON struct {
	FieldID           string            `json:"field_id"`
	Page              int               `json:"page"`
	X                 float64           `json:"x"`
	Y                 float64           `json:"y"`
	Width             float64           `json:"width"`
	Height            float64           `json:"height"`
	FieldType         FieldKind         `json:"field_type"`
	Value             json.RawMessage   `json:"value"`
	FontSize          *float64          `json:"font_size,omitempty"`
	Alignment         Alignment         `json:"alignment,omitempty"`
	VerticalAlignment VerticalAlignment `json:"vertical_alignment,omitempty"`
	Options           []string          `json:"options,omitempty"`
	FitMode           FitMode           `json:"fit_mode,omitempty"`
	TextOverflow      TextOverflow      `json:"text_overflow,omitempty"`
}

// UnmarshalJSON decodes the flat wire form where the value kind is carried
// by "field_type" next to "value".
func (f *FieldData) UnmarshalJSON(data []byte) error {
	var aux fieldDataJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	value, err := decodeValue(aux.FieldType, aux.Value)
	if err != nil {
		return fmt.Errorf("field %q: %w", aux.FieldID, err)
	}

	switch aux.FitMode {
	case "", FitFill, FitContain, FitCover, FitScaleDown:
	default:
		return fmt.Errorf("field %q: unknown fit_mode %q", aux.FieldID, aux.FitMode)
	}
	switch aux.TextOverflow {
	case "", OverflowVisible, OverflowCutoff:
	default:
		return fmt.Errorf("field %q: unknown text_overflow %q", aux.FieldID, aux.TextOverflow)
	}

	*f = FieldData{
		FieldID:           aux.FieldID,
		Page:              aux.Page,
		X:                 aux.X,
		Y:                 aux.Y,
		Width:             aux.Width,
		Height:            aux.Height,
		Value:             value,
		Alignment:         aux.Alignment,
		VerticalAlignment: aux.VerticalAlignment,
		Options:           aux.Options,
		FitMode:           aux.FitMode,
		TextOverflow:      aux.TextOverflow,
	}
	if aux.FontSize != nil {
		f.FontSize = *aux.FontSize
	}
	return nil
}

// ApplyTextOverflow sets overflow on every field that does not carry its
// own setting.
func ApplyTextOverflow(fields []FieldData, overflow TextOverflow) {
	for i := range fields {
		if fields[i].TextOverflow == "" {
			fields[i].TextOverflow = overflow
		}
	}
}
