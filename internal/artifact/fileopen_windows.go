//go:build windows

package artifact

import (
	"os"
)

// openFileNoFollow opens an artifact file for writing.
// Windows has no O_NOFOLLOW; ValidatePath has already refused symlinks.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}
