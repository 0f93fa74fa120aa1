package tree

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// DigestFromDirectory walks root depth-first in lexical order and returns
// a single hex-encoded sha256 digest over every regular file's relative
// path and contents. Directory structure alone (empty directories) does
// not affect the digest: what is installed is what gets hashed, not how
// the directories are shaped.
func DigestFromDirectory(root string) (string, error) {
	var paths []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return "", errors.Wrapf(err, "walking %s", root)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, rel := range paths {
		io.WriteString(h, rel)
		h.Write([]byte{0})

		f, err := os.Open(filepath.Join(root, rel))
		if err != nil {
			return "", errors.Wrapf(err, "hashing %s", rel)
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", errors.Wrapf(err, "hashing %s", rel)
		}
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyDepTree recomputes root's digest and compares it against want,
// returning an error naming both digests on mismatch so the installer can
// decide whether to auto-upgrade to a forced rebuild.
func VerifyDepTree(root, want string) error {
	got, err := DigestFromDirectory(root)
	if err != nil {
		return err
	}
	if got != want {
		return &IntegrityError{Root: root, Want: want, Got: got}
	}
	return nil
}
