// Package fetch implements the fetcher: resolving a package's
// declared source (registry archive, git, or a local path) into a staged,
// content-hashed directory the build dispatcher can consume.
package fetch

// Kind enumerates the source variants a rockspec's `source` table may
// declare.
type Kind int

const (
	KindRegistry Kind = iota
	KindGit
	KindLocal
)

// Source is one package's declared fetch origin. Exactly the fields
// relevant to Kind are populated.
type Source struct {
	Kind Kind

	// KindRegistry
	URL    string
	SHA256 string // expected digest of the downloaded archive, hex-encoded

	// KindGit
	GitURL string
	Ref    string // branch, tag, or commit; resolved to a commit SHA before recording

	// KindLocal
	Path string
}

// Result is what a successful fetch produces: a staged directory
// containing the unpacked (or copied) source tree, and the canonical
// source hash recorded into the LocalPackageId and the lockfile.
type Result struct {
	Dir        string
	SourceHash string
	// ResolvedRef is the commit SHA a git ref was pinned to. Empty for
	// non-git sources. A branch ref is never written back to the
	// lockfile directly; only this resolved commit is.
	ResolvedRef string
}
