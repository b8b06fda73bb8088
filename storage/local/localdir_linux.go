//go:build linux

package local

import (
	"errors"
	"os"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"
)

var noRenameat2 int32

// renameNoReplace moves the file to dst, failing with fs.ErrExist if dst already exists.
func renameNoReplace(src, dst string) error {
	if atomic.LoadInt32(&noRenameat2) == 0 {
		err := unix.Renameat2(unix.AT_FDCWD, src, unix.AT_FDCWD, dst, unix.RENAME_NOREPLACE)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, syscall.ENOSYS), errors.Is(err, syscall.EINVAL):
			// kernel or filesystem doesn't understand this flag; disable permanently
			atomic.StoreInt32(&noRenameat2, 1)
		default:
			return &os.LinkError{Op: "renameat2", Old: src, New: dst, Err: err}
		}
	}
	return linkNoReplace(src, dst)
}
