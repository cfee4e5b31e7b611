// Package model holds the data exchanged between the fill pipeline stages:
// field placements with their values, template page geometry and the
// processing metadata reported back to callers.
package model

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
)

// FieldKind names the discriminator used on the wire ("field_type").
type FieldKind string

const (
	KindText      FieldKind = "text"
	KindNumber    FieldKind = "number"
	KindDate      FieldKind = "date"
	KindCheckbox  FieldKind = "checkbox"
	KindRadio     FieldKind = "radio"
	KindDropdown  FieldKind = "dropdown"
	KindImage     FieldKind = "image"
	KindSignature FieldKind = "signature"
)

// FieldValue is the sum of all value kinds a field can carry. The set of
// implementations is closed; renderers switch over the concrete types.
type FieldValue interface {
	Kind() FieldKind
	isFieldValue()
}

type (
	Text     string
	Number   float64
	Date     string
	Checkbox bool
	Radio    string
	Dropdown string
)

// Image is a picture placed inside the field box.
type Image struct {
	Source ImageSource
}

// Signature is rendered exactly like Image; it is kept apart so callers can
// tell the two apart in their own data.
type Signature struct {
	Source ImageSource
}

func (Text) Kind() FieldKind      { return KindText }
func (Number) Kind() FieldKind    { return KindNumber }
func (Date) Kind() FieldKind      { return KindDate }
func (Checkbox) Kind() FieldKind  { return KindCheckbox }
func (Radio) Kind() FieldKind     { return KindRadio }
func (Dropdown) Kind() FieldKind  { return KindDropdown }
func (Image) Kind() FieldKind     { return KindImage }
func (Signature) Kind() FieldKind { return KindSignature }

func (Text) isFieldValue()      {}
func (Number) isFieldValue()    {}
func (Date) isFieldValue()      {}
func (Checkbox) isFieldValue()  {}
func (Radio) isFieldValue()     {}
func (Dropdown) isFieldValue()  {}
func (Image) isFieldValue()     {}
func (Signature) isFieldValue() {}

// String formats a number the way it is printed into the overlay: the
// shortest decimal representation, without exponent.
func (n Number) String() string {
	return strconv.FormatFloat(float64(n), 'f', -1, 64)
}

// ImageSource is either inline base64 data or a remote descriptor that the
// fetch stage has to resolve before rendering.
type ImageSource interface {
	isImageSource()
}

// InlineImage carries base64 encoded image file bytes (PNG, JPEG, ...).
type InlineImage struct {
	Base64 string
}

// RemoteImage is an image that still has to be downloaded.
type RemoteImage struct {
	URL URLConfig
}

func (InlineImage) isImageSource() {}
func (RemoteImage) isImageSource() {}

// NewInlineImage encodes raw image file bytes as an inline source.
func NewInlineImage(data []byte) InlineImage {
	return InlineImage{Base64: base64.StdEncoding.EncodeToString(data)}
}

// Bytes decodes the base64 payload.
func (i InlineImage) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(i.Base64)
}

// URLConfig describes an HTTP request for a template or an image.
type URLConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// ImageSourceOf returns the image source of Image and Signature values.
func ImageSourceOf(v FieldValue) (ImageSource, bool) {
	switch v := v.(type) {
	case Image:
		return v.Source, v.Source != nil
	case Signature:
		return v.Source, v.Source != nil
	}
	return nil, false
}

// WithImageSource returns v with its image source replaced. Values that do
// not carry images are returned unchanged.
func WithImageSource(v FieldValue, src ImageSource) FieldValue {
	switch v.(type) {
	case Image:
		return Image{Source: src}
	case Signature:
		return Signature{Source: src}
	}
	return v
}

func decodeValue(kind FieldKind, raw json.RawMessage) (FieldValue, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("missing value for field_type %q", kind)
	}

	switch kind {
	case KindText, KindDate, KindRadio, KindDropdown:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%s value must be a string: %w", kind, err)
		}
		switch kind {
		case KindText:
			return Text(s), nil
		case KindDate:
			return Date(s), nil
		case KindRadio:
			return Radio(s), nil
		default:
			return Dropdown(s), nil
		}
	case KindNumber:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("number value must be numeric: %w", err)
		}
		return Number(n), nil
	case KindCheckbox:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("checkbox value must be a boolean: %w", err)
		}
		return Checkbox(b), nil
	case KindImage, KindSignature:
		src, err := decodeImageSource(raw)
		if err != nil {
			return nil, fmt.Errorf("%s value: %w", kind, err)
		}
		if kind == KindImage {
			return Image{Source: src}, nil
		}
		return Signature{Source: src}, nil
	}

	return nil, fmt.Errorf("unknown field_type %q", kind)
}

func decodeImageSource(raw json.RawMessage) (ImageSource, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return InlineImage{Base64: s}, nil
	}

	var cfg URLConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("expected base64 string or url object: %w", err)
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("url object without url")
	}
	return RemoteImage{URL: cfg}, nil
}
