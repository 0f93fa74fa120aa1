package build

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// Dispatcher runs one Spec against an Env, producing populated RockLayout
// outputs. IdleTimeout bounds how long a subprocess may go without
// producing output before it is considered stuck and killed.
type Dispatcher struct {
	IdleTimeout time.Duration
}

// NewDispatcher returns a Dispatcher with a conservative default idle
// window for long-running subprocesses.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{IdleTimeout: 2 * time.Minute}
}

// Build runs spec against env, dispatching to the backend it names, and
// then, only when WrapBinScripts is true, generates wrapper scripts for
// any declared BinScripts; a Spec that leaves WrapBinScripts at its zero
// value gets no wrappers.
func (d *Dispatcher) Build(ctx context.Context, spec Spec, env Env) error {
	for _, dir := range []string{env.Layout.Src, env.Layout.Lib, env.Layout.Bin, env.Layout.Doc, env.Layout.Etc} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "creating layout dir %s", dir)
		}
	}

	var err error
	switch spec.Backend {
	case BackendBuiltin:
		err = d.buildBuiltin(ctx, spec, env)
	case BackendMake:
		err = d.buildMake(ctx, spec, env)
	case BackendCMake:
		err = d.buildCMake(ctx, spec, env)
	case BackendCommand:
		err = d.buildCommand(ctx, spec, env)
	case BackendTreesitterParser:
		err = d.buildTreesitterParser(ctx, spec, env)
	case BackendRustMlua:
		err = d.buildRustMlua(ctx, spec, env)
	case BackendLegacyShim:
		err = d.buildLegacyShim(ctx, spec, env)
	default:
		return errors.Errorf("unknown build backend %d", spec.Backend)
	}
	if err != nil {
		return err
	}

	if spec.WrapBinScripts {
		if err := d.writeBinWrappers(env, spec.BinScripts); err != nil {
			return errors.Wrap(err, "generating bin wrappers")
		}
	}
	return nil
}

// buildBuiltin compiles each module's C sources into a shared object
// named after the module and copies declared plain-Lua files verbatim,
// mirroring luarocks' "builtin" build type without shelling out to a
// separate build system.
func (d *Dispatcher) buildBuiltin(ctx context.Context, spec Spec, env Env) error {
	cc := d.ccCommand(env)

	for module, csources := range spec.Modules {
		soPath := filepath.Join(env.Layout.Lib, module+".so")
		if err := os.MkdirAll(filepath.Dir(soPath), 0755); err != nil {
			return errors.Wrapf(err, "creating %s", filepath.Dir(soPath))
		}

		args := append([]string{"-shared", "-fPIC", "-o", soPath}, csources...)
		args = append(args, "-I"+env.Interpreter.IncludeDir, "-L"+env.Interpreter.LibDir, "-l"+env.Interpreter.LuaLib)
		for _, dep := range env.ExternalDeps {
			args = append(args, dep.CFlags...)
			args = append(args, dep.Libs...)
		}

		cmd := exec.CommandContext(ctx, cc, args...)
		cmd.Dir = env.SourceDir
		if _, err := runMonitored(ctx, cmd, d.IdleTimeout); err != nil {
			return errors.Wrapf(err, "compiling module %s", module)
		}
	}

	for src, dst := range spec.Copy {
		if err := copyFile(filepath.Join(env.SourceDir, src), filepath.Join(env.Layout.Src, dst)); err != nil {
			return errors.Wrapf(err, "copying %s", src)
		}
	}
	return nil
}

func (d *Dispatcher) ccCommand(env Env) string {
	if cc := os.Getenv("CC"); cc != "" {
		return cc
	}
	return "cc"
}

// buildMake invokes `make` with the variables luarocks-compatible
// Makefiles expect, remapping the install target to the RockLayout.
func (d *Dispatcher) buildMake(ctx context.Context, spec Spec, env Env) error {
	target := spec.Target
	if target == "" {
		target = "install"
	}

	args := []string{
		"LUA=" + env.Interpreter.Executable,
		"LUALIB=" + env.Interpreter.LuaLib,
		"LUA_INCDIR=" + env.Interpreter.IncludeDir,
		"LUA_LIBDIR=" + env.Interpreter.LibDir,
		"PREFIX=" + env.Layout.Root,
		"INSTALL_LIB=" + env.Layout.Lib,
		"INSTALL_LUA=" + env.Layout.Src,
	}
	for k, v := range spec.Variables {
		args = append(args, k+"="+v)
	}
	args = append(args, target)

	cmd := exec.CommandContext(ctx, "make", args...)
	cmd.Dir = env.SourceDir
	_, err := runMonitored(ctx, cmd, d.IdleTimeout)
	return errors.Wrap(err, "running make")
}

// buildCMake configures, builds, and installs to the RockLayout's root as
// the CMake install prefix.
func (d *Dispatcher) buildCMake(ctx context.Context, spec Spec, env Env) error {
	buildDir := filepath.Join(env.SourceDir, "build")
	if err := os.MkdirAll(buildDir, 0755); err != nil {
		return errors.Wrapf(err, "creating %s", buildDir)
	}

	configureArgs := []string{
		env.SourceDir,
		"-DCMAKE_INSTALL_PREFIX=" + env.Layout.Root,
		"-DLUA_INCLUDE_DIR=" + env.Interpreter.IncludeDir,
		"-DLUA_LIBRARIES=" + env.Interpreter.LuaLib,
	}
	for k, v := range spec.Variables {
		configureArgs = append(configureArgs, "-D"+k+"="+v)
	}

	configure := exec.CommandContext(ctx, "cmake", configureArgs...)
	configure.Dir = buildDir
	if _, err := runMonitored(ctx, configure, d.IdleTimeout); err != nil {
		return errors.Wrap(err, "running cmake configure")
	}

	buildCmd := exec.CommandContext(ctx, "cmake", "--build", buildDir)
	if _, err := runMonitored(ctx, buildCmd, d.IdleTimeout); err != nil {
		return errors.Wrap(err, "running cmake --build")
	}

	installCmd := exec.CommandContext(ctx, "cmake", "--install", buildDir)
	_, err := runMonitored(ctx, installCmd, d.IdleTimeout)
	return errors.Wrap(err, "running cmake --install")
}

// buildCommand runs a user-declared command verbatim, as an argv slice
// rather than through a shell, with LUA_PATH/LUA_CPATH set from the
// output layout so the command can find sibling dependencies.
func (d *Dispatcher) buildCommand(ctx context.Context, spec Spec, env Env) error {
	if len(spec.Command) == 0 {
		return errors.New("command backend requires a non-empty argv")
	}
	cmd := exec.CommandContext(ctx, spec.Command[0], spec.Command[1:]...)
	cmd.Dir = env.SourceDir
	cmd.Env = append(os.Environ(),
		"LUA_PATH="+filepath.Join(env.Layout.Src, "?.lua"),
		"LUA_CPATH="+filepath.Join(env.Layout.Lib, "?.so"),
	)
	_, err := runMonitored(ctx, cmd, d.IdleTimeout)
	return errors.Wrap(err, "running build command")
}

// buildTreesitterParser compiles a tree-sitter grammar's generated parser
// and installs its query files into etc/queries.
func (d *Dispatcher) buildTreesitterParser(ctx context.Context, spec Spec, env Env) error {
	cc := d.ccCommand(env)
	soPath := filepath.Join(env.Layout.Lib, "parser.so")

	cmd := exec.CommandContext(ctx, cc, "-shared", "-fPIC", "-Isrc", "-o", soPath, "src/parser.c")
	cmd.Dir = env.SourceDir
	if _, err := runMonitored(ctx, cmd, d.IdleTimeout); err != nil {
		return errors.Wrap(err, "compiling tree-sitter parser")
	}

	queriesDir := filepath.Join(env.Layout.Etc, "queries")
	if err := os.MkdirAll(queriesDir, 0755); err != nil {
		return errors.Wrapf(err, "creating %s", queriesDir)
	}
	for _, q := range spec.QueryFiles {
		if err := copyFile(filepath.Join(env.SourceDir, q), filepath.Join(queriesDir, filepath.Base(q))); err != nil {
			return errors.Wrapf(err, "copying query file %s", q)
		}
	}
	return nil
}

// buildRustMlua runs `cargo build` with the configured profile and Lua
// ABI feature, copying the resulting cdylib into lib/.
func (d *Dispatcher) buildRustMlua(ctx context.Context, spec Spec, env Env) error {
	profile := spec.CargoProfile
	if profile == "" {
		profile = "release"
	}
	args := []string{"build", "--profile", profile}
	if spec.LuaFeature != "" {
		args = append(args, "--features", spec.LuaFeature)
	}

	cmd := exec.CommandContext(ctx, "cargo", args...)
	cmd.Dir = env.SourceDir
	if _, err := runMonitored(ctx, cmd, d.IdleTimeout); err != nil {
		return errors.Wrap(err, "running cargo build")
	}

	targetDir := filepath.Join(env.SourceDir, "target", profile)
	entries, err := os.ReadDir(targetDir)
	if err != nil {
		return errors.Wrapf(err, "reading cargo target dir %s", targetDir)
	}
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) == ".so" || filepath.Ext(name) == ".dylib" || filepath.Ext(name) == ".dll" {
			if err := copyFile(filepath.Join(targetDir, name), filepath.Join(env.Layout.Lib, name)); err != nil {
				return errors.Wrapf(err, "copying cargo artifact %s", name)
			}
		}
	}
	return nil
}

// buildLegacyShim stages the rockspec in a scratch directory and invokes
// the external `luarocks make` compatibility tool, then splices its
// output tree into the RockLayout.
func (d *Dispatcher) buildLegacyShim(ctx context.Context, spec Spec, env Env) error {
	compatTree := filepath.Join(env.SourceDir, ".luarocks-compat")
	if err := os.MkdirAll(compatTree, 0755); err != nil {
		return errors.Wrapf(err, "creating compat tree %s", compatTree)
	}

	cmd := exec.CommandContext(ctx, "luarocks", "make", spec.RockspecPath, "--tree", compatTree)
	cmd.Dir = env.SourceDir
	if _, err := runMonitored(ctx, cmd, d.IdleTimeout); err != nil {
		return errors.Wrap(err, "running luarocks make")
	}

	splices := map[string]string{
		filepath.Join(compatTree, "share", "lua", env.Interpreter.ABIVersion): env.Layout.Src,
		filepath.Join(compatTree, "lib", "lua", env.Interpreter.ABIVersion):   env.Layout.Lib,
		filepath.Join(compatTree, "bin"):                                     env.Layout.Bin,
		filepath.Join(compatTree, "doc"):                                     env.Layout.Doc,
	}
	for from, to := range splices {
		if _, err := os.Stat(from); err != nil {
			continue
		}
		if err := copyTreeInto(from, to); err != nil {
			return errors.Wrapf(err, "splicing %s into %s", from, to)
		}
	}
	return nil
}
