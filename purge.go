package lux

import "github.com/lux-pm/lux/internal/tree"

// Purge removes c's entire configured tree root for its configured
// interpreter version: every installed package goes, lockfile or not.
// The lockfile itself (and the manifest) are untouched; a following Sync
// will see every dependency as missing and reinstall from scratch.
func (c *Ctx) Purge() error {
	tr := tree.New(c.Config.TreeRoot, c.ABIVersion())
	return tr.Purge()
}
