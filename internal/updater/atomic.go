package updater

import (
	"os"
	"path/filepath"

	lwerrors "github.com/standardbeagle/linkwatcher/internal/errors"
)

// atomicWrite writes content to a temp file beside path and renames it over path.
// The temp file is removed on any failure.
func atomicWrite(path string, content []byte, perm os.FileMode, fsync bool) (err error) {
	dir, base := filepath.Split(path)
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return lwerrors.NewWriteError("create temp", path, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(content); err != nil {
		return lwerrors.NewWriteError("write temp", tmpName, err)
	}
	if fsync {
		if err = tmp.Sync(); err != nil {
			return lwerrors.NewWriteError("sync", tmpName, err)
		}
	}
	if err = tmp.Close(); err != nil {
		return lwerrors.NewWriteError("close", tmpName, err)
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return lwerrors.NewWriteError("chmod", tmpName, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return lwerrors.NewWriteError("rename", path, err)
	}
	return nil
}
