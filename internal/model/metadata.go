package model

// PageMetadata summarises one template page that received at least one
// field.
type PageMetadata struct {
	PageNumber  int     `json:"pageNumber"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	FieldsCount int     `json:"fieldsCount"`
}

// ProcessingMetadata accumulates counters and messages for one render
// session. It is append-only while the session runs.
type ProcessingMetadata struct {
	Pages           []PageMetadata `json:"pages"`
	FieldsProcessed int            `json:"fieldsProcessed"`
	FieldsSkipped   int            `json:"fieldsSkipped"`
	Warnings        []string       `json:"warnings"`
	Errors          []string       `json:"errors"`
}

// NewProcessingMetadata returns metadata with empty, non-nil lists so the
// JSON form always carries arrays.
func NewProcessingMetadata() *ProcessingMetadata {
	return &ProcessingMetadata{
		Pages:    []PageMetadata{},
		Warnings: []string{},
		Errors:   []string{},
	}
}

func (m *ProcessingMetadata) AddPage(p PageMetadata) {
	m.Pages = append(m.Pages, p)
}

func (m *ProcessingMetadata) Processed() {
	m.FieldsProcessed++
}

func (m *ProcessingMetadata) Skipped(n int) {
	m.FieldsSkipped += n
}

// Warn records a recoverable problem.
func (m *ProcessingMetadata) Warn(err error) {
	m.Warnings = append(m.Warnings, err.Error())
}

// Fail records a per-field failure. The job still continues.
func (m *ProcessingMetadata) Fail(err error) {
	m.Errors = append(m.Errors, err.Error())
}

// PageMap lists, for every overlay page in order, the template page index it
// belongs to. The overlay only holds pages that received fields, so overlay
// page k composites onto template page PageMap()[k].
func (m *ProcessingMetadata) PageMap() []int {
	out := make([]int, len(m.Pages))
	for i, p := range m.Pages {
		out[i] = p.PageNumber
	}
	return out
}
