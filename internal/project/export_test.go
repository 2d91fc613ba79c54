package project

import (
	"testing"
)

func TestBasename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"spaces and punctuation", "My Cool Project!", "my_cool_project_"},
		{"already clean", "blinky", "blinky"},
		{"digits kept", "Servo 9G Sweep", "servo_9g_sweep"},
		{"hyphen and dot", "temp-sensor v1.2", "temp_sensor_v1_2"},
		{"non ascii letters", "Café LED", "caf__led"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Basename(tt.input); got != tt.want {
				t.Errorf("Basename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFilenames(t *testing.T) {
	if got := CodeFilename("My Cool Project!"); got != "my_cool_project_.ino" {
		t.Errorf("CodeFilename() = %q", got)
	}
	if got := BOMFilename("My Cool Project!"); got != "my_cool_project__bom.csv" {
		t.Errorf("BOMFilename() = %q", got)
	}
	if got := SchematicFilename("My Cool Project!"); got != "my_cool_project__schematic.png" {
		t.Errorf("SchematicFilename() = %q", got)
	}
}

func TestBOMCSV(t *testing.T) {
	tests := []struct {
		name  string
		items []BOMItem
		want  string
	}{
		{
			name:  "single item",
			items: []BOMItem{{Component: "LED", Quantity: 1, Description: "Red 5mm"}},
			want:  "Component,Quantity,Description\n\"LED\",1,\"Red 5mm\"",
		},
		{
			name:  "embedded quotes doubled",
			items: []BOMItem{{Component: `He said "go"`, Quantity: 2, Description: `3/4" standoff`}},
			want:  "Component,Quantity,Description\n\"He said \"\"go\"\"\",2,\"3/4\"\" standoff\"",
		},
		{
			name: "multiple rows no trailing newline",
			items: []BOMItem{
				{Component: "Resistor", Quantity: 3, Description: "220 ohm, 1/4W"},
				{Component: "Breadboard", Quantity: 1, Description: "Half size"},
			},
			want: "Component,Quantity,Description\n\"Resistor\",3,\"220 ohm, 1/4W\"\n\"Breadboard\",1,\"Half size\"",
		},
		{
			name:  "empty bom",
			items: nil,
			want:  "Component,Quantity,Description\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BOMCSV(tt.items); got != tt.want {
				t.Errorf("BOMCSV() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestDecodeSchematic(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	encoded := EncodeSchematic(png)

	if got := DecodeSchematic(encoded); string(got) != string(png) {
		t.Errorf("DecodeSchematic() = %v, want %v", got, png)
	}

	for _, bad := range []string{"", "   ", "not base64!!", "abc"} {
		if got := DecodeSchematic(bad); len(got) != 0 {
			t.Errorf("DecodeSchematic(%q) = %d bytes, want 0", bad, len(got))
		}
	}
}
