package generator

import (
	"fmt"
	"strings"
)

// ProjectInstruction builds the text-stage instruction. The user prompt is
// embedded verbatim.
func ProjectInstruction(prompt string) string {
	return fmt.Sprintf(
		"Based on the following user prompt, generate a complete Arduino project. "+
			"The Arduino code should be complete, valid, and include comments. "+
			"The schematic description must be a clear, step-by-step guide for wiring. "+
			"The BOM must be accurate. User Prompt: \"%s\"",
		prompt,
	)
}

// schematicRules are the fixed style constraints for every schematic image.
var schematicRules = []string{
	"**Layout**: Logical arrangement with power at the bottom, Arduino in the center, and sensors/actuators at the top.",
	"**Wiring**: Use only straight, orthogonal wires. No diagonal lines. No overlapping wires. Consistent spacing.",
	"**Labels**: Clearly label all component pins (e.g., 'D13', 'GND', '5V').",
	"**Colors**: Use RED for power (VCC, 5V), BLACK for ground (GND), and other distinct colors for signal wires.",
	"**Style**: Clean, professional, and easy to read on a dark background.",
	"**Format**: The output must be a PNG image.",
}

// SchematicInstruction builds the image-stage instruction from the text-stage
// project name and wiring guide.
func SchematicInstruction(projectName, wiring string) string {
	var b strings.Builder
	b.WriteString("A high-resolution (1920x1080) professional circuit diagram for an Arduino project.\n")
	fmt.Fprintf(&b, "Project Name: \"%s\".\n", projectName)
	fmt.Fprintf(&b, "Wiring Instructions: \"%s\".\n", wiring)
	b.WriteString("The diagram must adhere to the following strict rules:\n")
	for i, rule := range schematicRules {
		fmt.Fprintf(&b, "%d. %s\n", i+1, rule)
	}
	return b.String()
}
