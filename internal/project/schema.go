package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hpungsan/chatbox/internal/errors"
)

// Required field names of the structured text response.
var requiredFields = []string{"projectName", "description", "bom", "arduinoCode", "schematicDescription"}

// Required field names of each BOM entry.
var requiredBOMFields = []string{"component", "quantity", "description"}

// RequiredFields returns the top-level fields the text response must contain.
func RequiredFields() []string {
	return append([]string(nil), requiredFields...)
}

// RequiredBOMFields returns the fields each BOM entry must contain.
func RequiredBOMFields() []string {
	return append([]string(nil), requiredBOMFields...)
}

// rawDraft mirrors Draft with pointer fields so missing keys are detectable.
type rawDraft struct {
	ProjectName          *string    `json:"projectName"`
	Description          *string    `json:"description"`
	BOM                  *[]rawItem `json:"bom"`
	ArduinoCode          *string    `json:"arduinoCode"`
	SchematicDescription *string    `json:"schematicDescription"`
}

type rawItem struct {
	Component   *string      `json:"component"`
	Quantity    *json.RawMessage `json:"quantity"`
	Description *string      `json:"description"`
}

// Draft is the text-stage result: a Project without its schematic image.
type Draft struct {
	ProjectName          string
	Description          string
	BOM                  []BOMItem
	ArduinoCode          string
	SchematicDescription string
}

// WithImage merges the draft with a base64 schematic payload.
func (d *Draft) WithImage(schematicPNG string) *Project {
	bom := make([]BOMItem, len(d.BOM))
	copy(bom, d.BOM)
	return &Project{
		ProjectName:          d.ProjectName,
		Description:          d.Description,
		BOM:                  bom,
		ArduinoCode:          d.ArduinoCode,
		SchematicDescription: d.SchematicDescription,
		SchematicPNG:         schematicPNG,
	}
}

// ParseDraft decodes the model's JSON text and validates it against the
// project schema. Every required field must be present with the right type and
// every quantity must be a positive integer. Failures are SCHEMA errors.
func ParseDraft(text string) (*Draft, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.NewSchema("empty response", nil)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()

	var raw rawDraft
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.NewSchema("response is not a valid project object", err)
	}
	if dec.More() {
		return nil, errors.NewSchema("unexpected data after project object", nil)
	}

	var missing []string
	if raw.ProjectName == nil {
		missing = append(missing, "projectName")
	}
	if raw.Description == nil {
		missing = append(missing, "description")
	}
	if raw.BOM == nil {
		missing = append(missing, "bom")
	}
	if raw.ArduinoCode == nil {
		missing = append(missing, "arduinoCode")
	}
	if raw.SchematicDescription == nil {
		missing = append(missing, "schematicDescription")
	}
	if len(missing) > 0 {
		return nil, schemaMissing(missing)
	}

	bom := make([]BOMItem, 0, len(*raw.BOM))
	for i, item := range *raw.BOM {
		parsed, err := item.toItem(i)
		if err != nil {
			return nil, err
		}
		bom = append(bom, parsed)
	}

	return &Draft{
		ProjectName:          *raw.ProjectName,
		Description:          *raw.Description,
		BOM:                  bom,
		ArduinoCode:          *raw.ArduinoCode,
		SchematicDescription: *raw.SchematicDescription,
	}, nil
}

func (r rawItem) toItem(index int) (BOMItem, error) {
	var missing []string
	if r.Component == nil {
		missing = append(missing, fmt.Sprintf("bom[%d].component", index))
	}
	if r.Quantity == nil {
		missing = append(missing, fmt.Sprintf("bom[%d].quantity", index))
	}
	if r.Description == nil {
		missing = append(missing, fmt.Sprintf("bom[%d].description", index))
	}
	if len(missing) > 0 {
		return BOMItem{}, schemaMissing(missing)
	}

	qty, err := strconv.ParseInt(string(*r.Quantity), 10, 64)
	if err != nil {
		return BOMItem{}, errors.NewSchema(fmt.Sprintf("bom[%d].quantity must be an integer", index), err)
	}
	if qty < 1 {
		return BOMItem{}, errors.NewSchema(fmt.Sprintf("bom[%d].quantity must be positive, got %d", index, qty), nil)
	}

	return BOMItem{
		Component:   *r.Component,
		Quantity:    int(qty),
		Description: *r.Description,
	}, nil
}

func schemaMissing(fields []string) *errors.ChatboxError {
	err := errors.NewSchema(fmt.Sprintf("response missing required fields: %v", fields), nil)
	err.Details = map[string]any{"missing_fields": fields}
	return err
}
