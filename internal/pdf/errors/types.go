package errors

import (
	"fmt"
)

// FillError is a classified failure raised while filling a template. Field
// level failures are recorded in the processing metadata and the job goes
// on; template acquisition and compositing failures abort the job.
type FillError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	FieldID string    `json:"field_id,omitempty"`
	Page    int       `json:"page,omitempty"`
	Err     error     `json:"-"`
}

// ErrorType represents the categories of fill failures
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeMissingPage
	ErrorTypeUnresolvedRemoteImage
	ErrorTypeImageDecode
	ErrorTypeImageEmbed
	ErrorTypeCompositing
	ErrorTypeCacheValidation
	ErrorTypeTemplateAcquisition
	ErrorTypeInvalidFieldData
)

// ErrorSeverity indicates how a failure affects the job
type ErrorSeverity int

const (
	SeverityWarning ErrorSeverity = iota
	SeverityError
	SeverityFatal
)

// Error implements the error interface
func (e *FillError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying cause
func (e *FillError) Unwrap() error {
	return e.Err
}

// Is matches any FillError of the same type, so errors.Is(err,
// &FillError{Type: ErrorTypeCompositing}) works through wrapping.
func (e *FillError) Is(target error) bool {
	t, ok := target.(*FillError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeMissingPage:
		return "MISSING_PAGE"
	case ErrorTypeUnresolvedRemoteImage:
		return "UNRESOLVED_REMOTE_IMAGE"
	case ErrorTypeImageDecode:
		return "IMAGE_DECODE_FAILURE"
	case ErrorTypeImageEmbed:
		return "IMAGE_EMBED_FAILURE"
	case ErrorTypeCompositing:
		return "COMPOSITING_FAILURE"
	case ErrorTypeCacheValidation:
		return "CACHE_VALIDATION_FAILURE"
	case ErrorTypeTemplateAcquisition:
		return "TEMPLATE_ACQUISITION_FAILURE"
	case ErrorTypeInvalidFieldData:
		return "INVALID_FIELD_DATA"
	default:
		return "UNKNOWN"
	}
}

// GetSeverity returns the severity level for a given error type
func (et ErrorType) GetSeverity() ErrorSeverity {
	switch et {
	case ErrorTypeMissingPage, ErrorTypeUnresolvedRemoteImage, ErrorTypeCacheValidation:
		return SeverityWarning
	case ErrorTypeImageDecode, ErrorTypeImageEmbed:
		return SeverityError
	case ErrorTypeCompositing, ErrorTypeTemplateAcquisition, ErrorTypeInvalidFieldData:
		return SeverityFatal
	default:
		return SeverityError
	}
}

// IsRecoverable reports whether the job can continue after this failure
func (et ErrorType) IsRecoverable() bool {
	return et.GetSeverity() != SeverityFatal
}

// GetSeverity returns the severity of this specific error
func (e *FillError) GetSeverity() ErrorSeverity {
	return e.Type.GetSeverity()
}

// IsFatal returns true if the job must be aborted
func (e *FillError) IsFatal() bool {
	return e.GetSeverity() == SeverityFatal
}

// MissingPage reports fields that reference a page the template lacks.
func MissingPage(page, fields int) *FillError {
	return &FillError{
		Type:    ErrorTypeMissingPage,
		Message: fmt.Sprintf("Page %d not found in template (%d field(s) skipped)", page, fields),
		Page:    page,
	}
}

// UnresolvedRemoteImage reports an image field whose URL was never fetched.
func UnresolvedRemoteImage(fieldID, url string) *FillError {
	return &FillError{
		Type:    ErrorTypeUnresolvedRemoteImage,
		Message: fmt.Sprintf("Skipped URL image for field %s (%s was not fetched)", fieldID, url),
		FieldID: fieldID,
	}
}

// ImageDecode reports an undecodable inline payload.
func ImageDecode(fieldID string, err error) *FillError {
	return &FillError{
		Type:    ErrorTypeImageDecode,
		Message: fmt.Sprintf("Failed to decode image %s", fieldID),
		FieldID: fieldID,
		Err:     err,
	}
}

// ImageEmbed reports an image that could not be registered in the overlay.
func ImageEmbed(fieldID string, err error) *FillError {
	return &FillError{
		Type:    ErrorTypeImageEmbed,
		Message: fmt.Sprintf("Failed to embed image %s", fieldID),
		FieldID: fieldID,
		Err:     err,
	}
}

// Compositing reports a merge backend failure.
func Compositing(backend string, err error) *FillError {
	return &FillError{
		Type:    ErrorTypeCompositing,
		Message: fmt.Sprintf("merge backend %s failed", backend),
		Err:     err,
	}
}

// CacheValidation reports a revalidation request that could not confirm
// freshness; cached bytes are used instead.
func CacheValidation(err error) *FillError {
	return &FillError{
		Type:    ErrorTypeCacheValidation,
		Message: "Cache validation failed, using cached template",
		Err:     err,
	}
}

// TemplateAcquisition reports that template bytes could not be obtained.
func TemplateAcquisition(source string, err error) *FillError {
	return &FillError{
		Type:    ErrorTypeTemplateAcquisition,
		Message: fmt.Sprintf("cannot load template %s", source),
		Err:     err,
	}
}

// InvalidFieldData reports unusable field input.
func InvalidFieldData(source string, err error) *FillError {
	return &FillError{
		Type:    ErrorTypeInvalidFieldData,
		Message: fmt.Sprintf("cannot read field data %s", source),
		Err:     err,
	}
}
