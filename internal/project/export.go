package project

import (
	"encoding/base64"
	"regexp"
	"strconv"
	"strings"
)

// BOMHeader is the first line of every BOM CSV export.
const BOMHeader = "Component,Quantity,Description"

// nonAlnumRegex matches every character outside [a-zA-Z0-9].
var nonAlnumRegex = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Basename derives the artifact filename stem from a project name:
// each non-alphanumeric character becomes "_", then the result is lower-cased.
// "My Cool Project!" → "my_cool_project_".
func Basename(projectName string) string {
	return strings.ToLower(nonAlnumRegex.ReplaceAllString(projectName, "_"))
}

// CodeFilename returns the firmware sketch filename.
func CodeFilename(projectName string) string {
	return Basename(projectName) + ".ino"
}

// BOMFilename returns the bill-of-materials CSV filename.
func BOMFilename(projectName string) string {
	return Basename(projectName) + "_bom.csv"
}

// SchematicFilename returns the schematic image filename.
func SchematicFilename(projectName string) string {
	return Basename(projectName) + "_schematic.png"
}

// BOMCSV renders items as CSV. Text fields are always double-quoted with
// embedded quotes doubled; rows are joined by "\n" without a trailing newline.
func BOMCSV(items []BOMItem) string {
	var b strings.Builder
	b.WriteString(BOMHeader)
	b.WriteByte('\n')
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(quoteCSV(item.Component))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(item.Quantity))
		b.WriteByte(',')
		b.WriteString(quoteCSV(item.Description))
	}
	return b.String()
}

func quoteCSV(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// DecodeSchematic decodes a base64 image payload. A payload that is empty or
// fails to decode yields zero bytes.
func DecodeSchematic(payload string) []byte {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil
	}
	return data
}

// EncodeSchematic base64-encodes raw image bytes.
func EncodeSchematic(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
