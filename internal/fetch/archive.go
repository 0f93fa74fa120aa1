package fetch

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// fetchRegistry downloads src.URL into a scratch file, verifies its
// sha256 against src.SHA256 (when declared), then unpacks it as a zip
// archive into destDir — the distribution format luarocks-compatible
// ".src.rock"/".rock" archives use.
func (f *Fetcher) fetchRegistry(ctx context.Context, src Source, destDir string) (Result, error) {
	archivePath := filepath.Join(destDir, ".download")
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return Result{}, errors.Wrapf(err, "creating scratch dir %s", destDir)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return Result{}, errors.Wrapf(err, "building request for %s", src.URL)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, errors.Wrapf(err, "downloading %s", src.URL)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{}, errors.Errorf("downloading %s: unexpected status %s", src.URL, resp.Status)
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return Result{}, errors.Wrapf(err, "creating %s", archivePath)
	}
	h := sha256.New()
	_, err = io.Copy(out, io.TeeReader(resp.Body, h))
	out.Close()
	if err != nil {
		return Result{}, errors.Wrapf(err, "writing %s", archivePath)
	}

	sum := hex.EncodeToString(h.Sum(nil))
	if src.SHA256 != "" && sum != src.SHA256 {
		return Result{}, &IntegrityError{Source: src.URL, Want: src.SHA256, Got: sum}
	}

	unpackDir := filepath.Join(destDir, "unpacked")
	if err := unzip(archivePath, unpackDir); err != nil {
		return Result{}, errors.Wrapf(err, "unpacking %s", archivePath)
	}
	os.Remove(archivePath)

	return Result{Dir: unpackDir, SourceHash: sum}, nil
}

func unzip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, zf := range r.File {
		target := filepath.Join(destDir, zf.Name)
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		src, err := zf.Open()
		if err != nil {
			return err
		}
		dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, zf.Mode())
		if err != nil {
			src.Close()
			return err
		}
		_, copyErr := io.Copy(dst, src)
		src.Close()
		dst.Close()
		if copyErr != nil {
			return copyErr
		}
	}
	return nil
}
