package fetch

import (
	"context"

	"github.com/pkg/errors"
	"github.com/termie/go-shutil"

	"github.com/lux-pm/lux/internal/tree"
)

// fetchLocal copies src.Path into destDir with an rsync-like recursive
// copy, for manifest entries that point at a path on disk (a sibling
// project under active development) rather than a registry or git
// source.
func (f *Fetcher) fetchLocal(ctx context.Context, src Source, destDir string) (Result, error) {
	if err := shutil.CopyTree(src.Path, destDir, nil); err != nil {
		return Result{}, errors.Wrapf(err, "copying local source %s", src.Path)
	}

	digest, err := tree.DigestFromDirectory(destDir)
	if err != nil {
		return Result{}, errors.Wrapf(err, "hashing local source %s", destDir)
	}

	return Result{Dir: destDir, SourceHash: digest}, nil
}
