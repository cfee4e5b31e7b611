package fill

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/omofolarin/fill-pdf/internal/model"
	fillerrors "github.com/omofolarin/fill-pdf/internal/pdf/errors"
)

// Field file formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// FormatFor picks the field file format from a file extension.
func FormatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// LoadFields reads a field file in JSON or YAML.
func LoadFields(path string) ([]model.FieldData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fillerrors.InvalidFieldData(path, err)
	}
	fields, err := ParseFields(data, FormatFor(path))
	if err != nil {
		return nil, fillerrors.InvalidFieldData(path, err)
	}
	return fields, nil
}

// ParseFields decodes a list of fields. YAML documents are converted to
// their JSON form first so both formats share one decoder.
func ParseFields(data []byte, format string) ([]model.FieldData, error) {
	if format == FormatYAML {
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("unsupported YAML content: %w", err)
		}
		data = converted
	}

	var fields []model.FieldData
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("invalid field data: %w", err)
	}
	return fields, nil
}
