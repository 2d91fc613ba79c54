package artifact

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hpungsan/chatbox/internal/config"
	"github.com/hpungsan/chatbox/internal/errors"
	"github.com/hpungsan/chatbox/internal/project"
)

// Code builds the firmware sketch artifact.
func Code(p *project.Project) *Artifact {
	return &Artifact{
		Kind:     KindCode,
		Filename: project.CodeFilename(p.ProjectName),
		MIMEType: MIMECode,
		Content:  []byte(p.ArduinoCode),
	}
}

// BOM builds the bill-of-materials CSV artifact.
func BOM(p *project.Project) *Artifact {
	return &Artifact{
		Kind:     KindBOM,
		Filename: project.BOMFilename(p.ProjectName),
		MIMEType: MIMEBOM,
		Content:  []byte(project.BOMCSV(p.BOM)),
	}
}

// Schematic builds the schematic PNG artifact.
// Returns EXPORT_FAILED if the stored payload does not decode to any bytes.
func Schematic(p *project.Project) (*Artifact, error) {
	data := project.DecodeSchematic(p.SchematicPNG)
	if len(data) == 0 {
		return nil, errors.NewInvalidImageData()
	}
	return &Artifact{
		Kind:     KindSchematic,
		Filename: project.SchematicFilename(p.ProjectName),
		MIMEType: MIMESchematic,
		Content:  data,
	}, nil
}

// Build returns the artifact of the given kind for p.
func Build(p *project.Project, kind Kind) (*Artifact, error) {
	switch kind {
	case KindCode:
		return Code(p), nil
	case KindBOM:
		return BOM(p), nil
	case KindSchematic:
		return Schematic(p)
	}
	return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown artifact kind %q", kind))
}

// SaveOutput contains the result of the Save operation.
type SaveOutput struct {
	Path    string `json:"path"`
	Kind    Kind   `json:"kind"`
	Bytes   int    `json:"bytes"`
	SavedAt int64  `json:"saved_at"`
}

// Save writes a to path, or to <exports dir>/<a.Filename> when path is empty.
// The file is written to a temp file first and renamed into place, so an
// existing file survives any failure.
func Save(ctx context.Context, cfg *config.Config, a *Artifact, path string) (*SaveOutput, error) {
	if a == nil {
		return nil, errors.NewNoProject()
	}

	if path == "" {
		dir, err := exportsDir(cfg)
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, a.Filename)
	}

	if err := ValidatePath(path, a.Kind, cfg); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, errors.NewCancelled("save")
	default:
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create artifact file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(a.Content); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close artifact file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink swapped in after validation.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInvalidRequest("path must not be a symlink")
	}

	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return nil, errors.NewInvalidRequest("artifact destination already exists; overwriting is not supported on Windows (choose a new path or delete the existing file)")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize artifact: %w", err))
	}

	success = true
	return &SaveOutput{
		Path:    path,
		Kind:    a.Kind,
		Bytes:   len(a.Content),
		SavedAt: time.Now().Unix(),
	}, nil
}

func exportsDir(cfg *config.Config) (string, error) {
	if cfg != nil && cfg.BaseDir != "" {
		return cfg.ExportsDir(), nil
	}
	return DefaultExportsDir()
}
