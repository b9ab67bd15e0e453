// Package archive packages the lambda deployment zip from a fixed, ordered
// member manifest. The destination is replaced atomically: a failed build
// never leaves a partial archive behind, since a stale or truncated zip
// silently re-used on a later attempt would be deployed as-is.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gitlab.com/z0mbie42/rz-go/v2"
	"gitlab.com/z0mbie42/rz-go/v2/log"
)

// ErrMissingSource is returned when a manifest source file does not exist.
var ErrMissingSource = errors.New("missing archive source file")

// Member maps a file on disk to its name inside the archive. The archived
// name is independent of the source filename.
type Member struct {
	SourcePath string
	Name       string
}

// Build writes an archive containing exactly the given members, in manifest
// order, to destPath. Any pre-existing file at destPath is removed first.
// The archive is assembled in a temporary file and renamed into place only
// on success.
func Build(
	destPath string,
	members []Member,
) error {
	// Remove any stale archive up front: on failure the destination must
	// be empty, never a leftover from an earlier run.
	if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	for _, m := range members {
		if _, err := os.Stat(m.SourcePath); err != nil {
			return fmt.Errorf("%w: %s", ErrMissingSource, m.SourcePath)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".lambda-letsencrypt-*.zip")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if err := writeMembers(tmp, members); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return err
	}

	log.Debug(
		"Wrote deployment archive",
		rz.String("archive_path", destPath),
		rz.Int("member_count", len(members)),
	)

	return nil
}

func writeMembers(
	w io.Writer,
	members []Member,
) error {
	zw := zip.NewWriter(w)

	for _, m := range members {
		// A fixed header keeps the archive bytes independent of
		// source file timestamps and permissions.
		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:   m.Name,
			Method: zip.Deflate,
		})
		if err != nil {
			return err
		}

		src, err := os.Open(m.SourcePath)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrMissingSource, m.SourcePath)
		}
		if _, err := io.Copy(entry, src); err != nil {
			src.Close()
			return err
		}
		src.Close()
	}

	return zw.Close()
}
