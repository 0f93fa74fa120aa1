package fetch

import (
	"context"
	"os"
	"path/filepath"

	"github.com/Masterminds/vcs"
	"github.com/pkg/errors"

	"github.com/lux-pm/lux/internal/tree"
)

// fetchGit clones src.GitURL into destDir and checks out src.Ref, then
// resolves whatever ref was given (branch, tag, or commit) down to a
// concrete commit SHA. Only that resolved SHA is ever returned to the
// caller for recording — branches are not reproducible and are never
// written into the lockfile; only a concrete revision ever is.
func (f *Fetcher) fetchGit(ctx context.Context, src Source, destDir string) (Result, error) {
	if err := os.MkdirAll(filepath.Dir(destDir), 0755); err != nil {
		return Result{}, errors.Wrapf(err, "creating scratch dir for %s", destDir)
	}

	repo, err := vcs.NewRepo(src.GitURL, destDir)
	if err != nil {
		return Result{}, errors.Wrapf(err, "preparing git source %s", src.GitURL)
	}

	if err := repo.Get(); err != nil {
		return Result{}, errors.Wrapf(err, "cloning %s", src.GitURL)
	}

	ref := src.Ref
	if ref != "" {
		if err := repo.UpdateVersion(ref); err != nil {
			return Result{}, errors.Wrapf(err, "checking out %s at %s", src.GitURL, ref)
		}
	}

	commit, err := repo.CurrentVersion()
	if err != nil {
		return Result{}, errors.Wrapf(err, "resolving commit for %s", src.GitURL)
	}

	if !repo.CheckLocal() {
		return Result{}, errors.Errorf("expected a local checkout at %s", destDir)
	}

	digest, err := tree.DigestFromDirectory(destDir)
	if err != nil {
		return Result{}, errors.Wrapf(err, "hashing checkout at %s", destDir)
	}

	return Result{Dir: destDir, SourceHash: digest, ResolvedRef: commit}, nil
}
