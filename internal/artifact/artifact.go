package artifact

// Kind identifies one of the exportable projections of a project.
type Kind string

const (
	KindCode      Kind = "code"
	KindBOM       Kind = "bom"
	KindSchematic Kind = "schematic"
)

// Kinds lists every artifact kind in display order.
var Kinds = []Kind{KindCode, KindBOM, KindSchematic}

// MIME types per kind.
const (
	MIMECode      = "text/plain"
	MIMEBOM       = "text/csv"
	MIMESchematic = "image/png"
)

// Artifact is an in-memory file ready to be downloaded or saved.
type Artifact struct {
	Kind     Kind
	Filename string
	MIMEType string
	Content  []byte
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Extension returns the file extension required for the kind.
func (k Kind) Extension() string {
	switch k {
	case KindCode:
		return ".ino"
	case KindBOM:
		return ".csv"
	case KindSchematic:
		return ".png"
	}
	return ""
}
