package project

// BOMItem is one line of a bill of materials.
type BOMItem struct {
	Component   string `json:"component"`
	Quantity    int    `json:"quantity"`
	Description string `json:"description"`
}

// Project is a generated electronics project.
// A Project is only built once both the text and image stages have succeeded,
// so SchematicPNG is always populated on values returned by a generator.
type Project struct {
	// ProjectName is the model-chosen project title
	ProjectName string `json:"projectName"`

	// Description is a short markdown summary of the project
	Description string `json:"description"`

	// BOM is the parts list in model order
	BOM []BOMItem `json:"bom"`

	// ArduinoCode is the firmware source, opaque to chatbox
	ArduinoCode string `json:"arduinoCode"`

	// SchematicDescription is the step-by-step wiring guide
	SchematicDescription string `json:"schematicDescription"`

	// SchematicPNG is the schematic image, base64 encoded
	SchematicPNG string `json:"schematicPng"`
}

// Clone returns a deep copy of p.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	c := *p
	if p.BOM != nil {
		c.BOM = make([]BOMItem, len(p.BOM))
		copy(c.BOM, p.BOM)
	}
	return &c
}

// WithoutImage returns a copy with the image payload stripped, for listings
// where the base64 blob would only add noise.
func (p *Project) WithoutImage() *Project {
	c := p.Clone()
	if c != nil {
		c.SchematicPNG = ""
	}
	return c
}
