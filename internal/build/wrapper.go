package build

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// writeBinWrappers generates a shell wrapper for each named script under
// layout.Src, prepending the correct interpreter invocation and
// LUA_PATH/LUA_CPATH so the script finds its sibling dependencies
// regardless of the caller's own environment.
func (d *Dispatcher) writeBinWrappers(env Env, scripts []string) error {
	for _, name := range scripts {
		target := filepath.Join(env.Layout.Src, name)
		wrapperPath := filepath.Join(env.Layout.Bin, filepath.Base(name))

		script := fmt.Sprintf(`#!/bin/sh
export LUA_PATH="%s/?.lua;%s/?/init.lua;${LUA_PATH}"
export LUA_CPATH="%s/?.so;${LUA_CPATH}"
exec "%s" "%s" "$@"
`, env.Layout.Src, env.Layout.Src, env.Layout.Lib, env.Interpreter.Executable, target)

		if err := os.WriteFile(wrapperPath, []byte(script), 0755); err != nil {
			return errors.Wrapf(err, "writing wrapper %s", wrapperPath)
		}
	}
	return nil
}
