package artifact

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/hpungsan/chatbox/internal/config"
	"github.com/hpungsan/chatbox/internal/errors"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseDir = t.TempDir()
	return cfg
}

func TestValidatePath_TraversalRejected(t *testing.T) {
	cfg := testConfig(t)

	tests := []struct {
		name string
		path string
	}{
		{"parent traversal", "../blinky.ino"},
		{"deep traversal", "../../etc/blinky.ino"},
		{"mid-path traversal", "/tmp/../etc/blinky.ino"},
		{"hidden in path", cfg.ExportsDir() + "/../../blinky.ino"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePath(tc.path, KindCode, cfg)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got: %v", err)
			}
		})
	}
}

func TestValidatePath_ExtensionMustMatchKind(t *testing.T) {
	cfg := testConfig(t)
	cfg.AllowUnsafePaths = true

	tests := []struct {
		name string
		path string
		kind Kind
		ok   bool
	}{
		{"sketch", "/tmp/blinky.ino", KindCode, true},
		{"bom", "/tmp/blinky_bom.csv", KindBOM, true},
		{"schematic", "/tmp/blinky_schematic.png", KindSchematic, true},
		{"sketch as txt", "/tmp/blinky.txt", KindCode, false},
		{"csv for schematic", "/tmp/blinky.csv", KindSchematic, false},
		{"no extension", "/tmp/blinky", KindBOM, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePath(tc.path, tc.kind, cfg)
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got: %v", err)
			}
		})
	}
}

func TestValidatePath_DirectoryRestrictions(t *testing.T) {
	cfg := testConfig(t)
	allowed := t.TempDir()
	cfg.AllowedPaths = []string{allowed, "relative/ignored"}

	tests := []struct {
		name string
		path string
		ok   bool
	}{
		{"exports dir", filepath.Join(cfg.ExportsDir(), "blinky.ino"), true},
		{"allowed path", filepath.Join(allowed, "blinky.ino"), true},
		{"subdirectory of exports", filepath.Join(cfg.ExportsDir(), "nested", "blinky.ino"), false},
		{"outside", filepath.Join(t.TempDir(), "blinky.ino"), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePath(tc.path, KindCode, cfg)
			if tc.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got: %v", err)
			}
		})
	}
}

func TestValidatePath_AllowUnsafePaths(t *testing.T) {
	cfg := testConfig(t)
	cfg.AllowUnsafePaths = true

	path := filepath.Join(t.TempDir(), "deep", "blinky_bom.csv")
	if err := ValidatePath(path, KindBOM, cfg); err != nil {
		t.Errorf("AllowUnsafePaths should permit any directory, got: %v", err)
	}
}

func TestValidatePath_SymlinkRejected(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on Windows")
	}
	cfg := testConfig(t)
	cfg.AllowUnsafePaths = true

	dir := t.TempDir()
	target := filepath.Join(dir, "target.ino")
	if err := os.WriteFile(target, []byte("x"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	link := filepath.Join(dir, "link.ino")
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("Symlink failed: %v", err)
	}

	err := ValidatePath(link, KindCode, cfg)
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for symlink, got: %v", err)
	}
}

func TestValidatePath_EmptyPath(t *testing.T) {
	if err := ValidatePath("", KindCode, testConfig(t)); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got: %v", err)
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, ok := ParseKind(string(k))
		if !ok || got != k {
			t.Errorf("ParseKind(%q) = %q, %v", k, got, ok)
		}
	}
	if _, ok := ParseKind("gerber"); ok {
		t.Error("ParseKind should reject unknown kinds")
	}
}
