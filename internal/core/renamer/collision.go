package renamer

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	// maxRenameAttempts bounds retries when another process takes the
	// target between our existence check and the rename.
	maxRenameAttempts = 5
	// maxCounter bounds the version suffix search.
	maxCounter = 10000
)

var errSameFile = errors.New("destination is the source file")

// nameFunc returns the candidate filename for a version counter.
type nameFunc func(counter int) string

// place moves src into destDir under the first free candidate name. It
// returns errSameFile when src already carries its target name.
func (r *Renamer) place(src, destDir string, name nameFunc) (string, error) {
	// Check and claim happen under one lock.
	r.namespace.Lock()
	defer r.namespace.Unlock()

	counter := 0
	attempts := 0
	for {
		if counter > maxCounter {
			return "", fmt.Errorf("no free filename after %d candidates", maxCounter)
		}
		target := filepath.Join(destDir, name(counter))
		if target == src {
			return "", errSameFile
		}

		taken, err := exists(target)
		if err != nil {
			return "", err
		}
		if taken {
			if sameFile(src, target) {
				return "", errSameFile
			}
			counter++
			continue
		}

		err = renameNoReplace(src, target)
		if errors.Is(err, fs.ErrExist) {
			// Lost a race with another process.
			attempts++
			if attempts >= maxRenameAttempts {
				return "", fmt.Errorf("target kept appearing after %d attempts: %w", attempts, err)
			}
			counter++
			continue
		}
		if err != nil {
			return "", err
		}
		return target, nil
	}
}

// freeName returns the first candidate that does not exist, without
// claiming it. Used by dry runs.
func freeName(src, destDir string, name nameFunc) (string, bool, error) {
	target := filepath.Join(destDir, name(0))
	if target == src {
		return target, false, errSameFile
	}
	taken, err := exists(target)
	if err != nil {
		return "", false, err
	}
	if taken && sameFile(src, target) {
		return target, true, errSameFile
	}
	return target, taken, nil
}

func exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// sameFile catches case-insensitive filesystems where a different
// spelling names the source itself.
func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

// renameNoReplace moves src to dst and fails with fs.ErrExist rather than
// overwrite.
var renameNoReplace = linkRename

// linkRename claims dst atomically with a hard link. Filesystems without
// links (or a dst on another device) fall back to an exclusive-create copy.
func linkRename(src, dst string) error {
	err := os.Link(src, dst)
	if err == nil {
		if err := os.Remove(src); err != nil {
			_ = os.Remove(dst)
			return err
		}
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		return err
	}
	return copyExclusive(src, dst)
}

func copyExclusive(src, dst string) (err error) {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	if err = out.Sync(); err != nil {
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	return os.Remove(src)
}
