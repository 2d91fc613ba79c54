//go:build !windows

package artifact

import (
	stderrors "errors"
	"os"
	"syscall"

	"github.com/hpungsan/chatbox/internal/errors"
)

// openFileNoFollow opens an artifact file for writing with O_NOFOLLOW so a
// symlink planted at the final path component is refused. O_CLOEXEC keeps the
// descriptor out of child processes.
//
// Only the final component is covered here. ValidatePath rejects nested paths,
// so no intermediate directory can be swapped.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	fd, err := syscall.Open(path, flag|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, uint32(perm))
	if err != nil {
		if stderrors.Is(err, syscall.ELOOP) {
			return nil, errors.NewInvalidRequest("cannot write artifact to symlink")
		}
		return nil, err
	}
	return os.NewFile(uintptr(fd), path), nil
}
