package lux

import (
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"github.com/lux-pm/lux/internal/build"
	"github.com/lux-pm/lux/internal/fetch"
	"github.com/lux-pm/lux/internal/resolver"
)

// tomlMapper wraps a *toml.TomlTree with an accumulated Error, so a chain
// of reads can each check-and-bail without threading an error return
// through every helper call.
type tomlMapper struct {
	Tree  *toml.TomlTree
	Error error
}

// ParseManifest parses a lux.toml document into a Rockspec, including any
// [platforms.<tag>] override subtables.
func ParseManifest(data []byte) (Rockspec, error) {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return Rockspec{}, &ManifestError{Reason: err.Error()}
	}
	mapper := &tomlMapper{Tree: tree}

	pkg := readKeyAsString(mapper, "package")
	versionStr := readKeyAsString(mapper, "version")
	if mapper.Error != nil {
		return Rockspec{}, &ManifestError{Reason: mapper.Error.Error()}
	}
	version, err := resolver.ParsePackageVersion(versionStr)
	if err != nil {
		return Rockspec{}, &ManifestError{Field: "version", Reason: err.Error()}
	}

	spec := NewRockspec(pkg, version)
	if err := applyManifestTable(mapper, tree, &spec, ""); err != nil {
		return Rockspec{}, err
	}

	platforms, err := subTrees(tree, "platforms")
	if err != nil {
		return Rockspec{}, &ManifestError{Field: "platforms", Reason: err.Error()}
	}
	for tag, sub := range platforms {
		if err := applyManifestTable(mapper, sub, &spec, tag); err != nil {
			return Rockspec{}, &ManifestError{Field: "platforms." + tag, Reason: err.Error()}
		}
	}

	return spec, nil
}

// applyManifestTable reads the base manifest fields from tree and, if tag
// is non-empty, records them as tag's PerPlatform override instead of
// overwriting the base.
func applyManifestTable(mapper *tomlMapper, tree *toml.TomlTree, spec *Rockspec, tag string) error {
	sub := &tomlMapper{Tree: tree}

	deps := readDependencyTable(sub, "dependencies")
	buildDeps := readDependencyTable(sub, "build_dependencies")
	testDeps := readDependencyTable(sub, "test_dependencies")
	src := readSourceTable(sub, tree)
	buildSpec := readBuildTable(sub, tree)
	deploy := readDeployTable(sub, tree)
	run := readRunTable(sub, tree)
	copyDirs := readKeyAsStringList(sub, "copy_directories")

	if sub.Error != nil {
		return &ManifestError{Reason: sub.Error.Error()}
	}

	if tag == "" {
		if deps != nil {
			spec.Dependencies.Base = deps
		}
		if buildDeps != nil {
			spec.BuildDependencies.Base = buildDeps
		}
		if testDeps != nil {
			spec.TestDependencies.Base = testDeps
		}
		if src != nil {
			spec.Source.Base = *src
		}
		if buildSpec != nil {
			spec.Build.Base = *buildSpec
		}
		if deploy != nil {
			spec.Deploy.Base = *deploy
		}
		if run != nil {
			spec.Run.Base = run
		}
		if copyDirs != nil {
			spec.CopyDirectories.Base = copyDirs
		}
		return nil
	}

	if deps != nil {
		spec.Dependencies = spec.Dependencies.WithOverride(tag, deps)
	}
	if buildDeps != nil {
		spec.BuildDependencies = spec.BuildDependencies.WithOverride(tag, buildDeps)
	}
	if testDeps != nil {
		spec.TestDependencies = spec.TestDependencies.WithOverride(tag, testDeps)
	}
	if src != nil {
		spec.Source = spec.Source.WithOverride(tag, *src)
	}
	if buildSpec != nil {
		spec.Build = spec.Build.WithOverride(tag, *buildSpec)
	}
	if deploy != nil {
		spec.Deploy = spec.Deploy.WithOverride(tag, *deploy)
	}
	if run != nil {
		spec.Run = spec.Run.WithOverride(tag, run)
	}
	if copyDirs != nil {
		spec.CopyDirectories = spec.CopyDirectories.WithOverride(tag, copyDirs)
	}
	return nil
}

// readDependencyTable reads a [dependencies]-style table of name =
// "constraint string" pairs into a []resolver.PackageReq. Returns nil
// (not an error) if the key is absent, so callers can tell "not declared
// here" apart from "declared empty."
func readDependencyTable(mapper *tomlMapper, key string) []resolver.PackageReq {
	if mapper.Error != nil {
		return nil
	}
	sub, ok := mapper.Tree.Get(key).(*toml.TomlTree)
	if !ok {
		return nil
	}

	var reqs []resolver.PackageReq
	for _, name := range sub.Keys() {
		raw, ok := sub.Get(name).(string)
		if !ok {
			mapper.Error = errors.Errorf("dependencies.%s: constraint must be a string", name)
			return nil
		}
		constraint, err := resolver.ParseVersionConstraint(raw)
		if err != nil {
			mapper.Error = errors.Wrapf(err, "dependencies.%s", name)
			return nil
		}
		reqs = append(reqs, resolver.PackageReq{Name: resolver.PackageName(name), Constraint: constraint})
	}
	return reqs
}

// readSourceTable reads the [source] table, returning nil if absent.
func readSourceTable(mapper *tomlMapper, tree *toml.TomlTree) *fetch.Source {
	if mapper.Error != nil {
		return nil
	}
	sub, ok := tree.Get("source").(*toml.TomlTree)
	if !ok {
		return nil
	}
	subMapper := &tomlMapper{Tree: sub}

	url := readKeyAsString(subMapper, "url")
	gitURL := readKeyAsString(subMapper, "git")
	path := readKeyAsString(subMapper, "path")
	sha256 := readKeyAsString(subMapper, "sha256")
	ref := readKeyAsString(subMapper, "ref")
	if subMapper.Error != nil {
		mapper.Error = subMapper.Error
		return nil
	}

	switch {
	case gitURL != "":
		return &fetch.Source{Kind: fetch.KindGit, GitURL: gitURL, Ref: ref}
	case path != "":
		return &fetch.Source{Kind: fetch.KindLocal, Path: path}
	case url != "":
		return &fetch.Source{Kind: fetch.KindRegistry, URL: url, SHA256: sha256}
	default:
		mapper.Error = errors.New("source table must declare one of url, git, or path")
		return nil
	}
}

// readBuildTable reads the [build] table. The "type" key selects the
// backend; the remaining keys are backend-specific and read accordingly.
func readBuildTable(mapper *tomlMapper, tree *toml.TomlTree) *build.Spec {
	if mapper.Error != nil {
		return nil
	}
	sub, ok := tree.Get("build").(*toml.TomlTree)
	if !ok {
		return nil
	}
	subMapper := &tomlMapper{Tree: sub}

	backendName := readKeyAsString(subMapper, "type")
	if subMapper.Error != nil {
		mapper.Error = subMapper.Error
		return nil
	}

	spec := &build.Spec{}
	switch backendName {
	case "", "builtin":
		spec.Backend = build.BackendBuiltin
	case "make":
		spec.Backend = build.BackendMake
		spec.Target = readKeyAsString(subMapper, "target")
	case "cmake":
		spec.Backend = build.BackendCMake
	case "command":
		spec.Backend = build.BackendCommand
		spec.Command = readKeyAsStringList(subMapper, "command")
	case "treesitter_parser":
		spec.Backend = build.BackendTreesitterParser
		spec.GrammarJS = readKeyAsString(subMapper, "grammar_js")
		spec.QueryFiles = readKeyAsStringList(subMapper, "query_files")
	case "rust_mlua":
		spec.Backend = build.BackendRustMlua
		spec.CargoProfile = readKeyAsString(subMapper, "cargo_profile")
		spec.LuaFeature = readKeyAsString(subMapper, "lua_feature")
	case "legacy_shim":
		spec.Backend = build.BackendLegacyShim
		spec.RockspecPath = readKeyAsString(subMapper, "rockspec_path")
	default:
		mapper.Error = errors.Errorf("build.type: unknown backend %q", backendName)
		return nil
	}

	if subMapper.Error != nil {
		mapper.Error = subMapper.Error
		return nil
	}
	return spec
}

// readDeployTable reads the [deploy] table, returning nil if absent.
func readDeployTable(mapper *tomlMapper, tree *toml.TomlTree) *DeploySpec {
	if mapper.Error != nil {
		return nil
	}
	sub, ok := tree.Get("deploy").(*toml.TomlTree)
	if !ok {
		return nil
	}
	subMapper := &tomlMapper{Tree: sub}
	wrap, _ := sub.Get("wrap_bin_scripts").(bool)
	scripts := readKeyAsStringList(subMapper, "bin_scripts")
	if subMapper.Error != nil {
		mapper.Error = subMapper.Error
		return nil
	}
	return &DeploySpec{WrapBinScripts: wrap, BinScripts: scripts}
}

// readRunTable reads the [run] table, returning nil if absent.
func readRunTable(mapper *tomlMapper, tree *toml.TomlTree) *RunSpec {
	if mapper.Error != nil {
		return nil
	}
	sub, ok := tree.Get("run").(*toml.TomlTree)
	if !ok {
		return nil
	}
	subMapper := &tomlMapper{Tree: sub}
	cmd := readKeyAsStringList(subMapper, "command")
	if subMapper.Error != nil {
		mapper.Error = subMapper.Error
		return nil
	}
	return &RunSpec{Command: cmd}
}

// readKeyAsString reads a string-valued key, defaulting to "" when absent.
func readKeyAsString(mapper *tomlMapper, key string) string {
	if mapper.Error != nil {
		return ""
	}
	raw := mapper.Tree.GetDefault(key, "")
	value, ok := raw.(string)
	if !ok {
		mapper.Error = errors.Errorf("%s: expected a string, got %T", key, raw)
		return ""
	}
	return value
}

// readKeyAsStringList reads an array-of-strings key, returning nil when
// absent.
func readKeyAsStringList(mapper *tomlMapper, key string) []string {
	if mapper.Error != nil {
		return nil
	}
	raw := mapper.Tree.Get(key)
	if raw == nil {
		return nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		mapper.Error = errors.Errorf("%s: expected an array of strings, got %T", key, raw)
		return nil
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			mapper.Error = errors.Errorf("%s[%d]: expected a string, got %T", key, i, item)
			return nil
		}
		out[i] = s
	}
	return out
}

// subTrees returns the immediate child tables of tree.<key> keyed by
// name, e.g. subTrees(tree, "platforms") for [platforms.unix].
func subTrees(tree *toml.TomlTree, key string) (map[string]*toml.TomlTree, error) {
	raw := tree.Get(key)
	if raw == nil {
		return nil, nil
	}
	parent, ok := raw.(*toml.TomlTree)
	if !ok {
		return nil, errors.Errorf("%s: expected a table", key)
	}
	out := make(map[string]*toml.TomlTree)
	for _, name := range parent.Keys() {
		sub, ok := parent.Get(name).(*toml.TomlTree)
		if !ok {
			return nil, errors.Errorf("%s.%s: expected a table", key, name)
		}
		out[name] = sub
	}
	return out, nil
}
