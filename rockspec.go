package lux

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/lux-pm/lux/internal/build"
	"github.com/lux-pm/lux/internal/fetch"
	"github.com/lux-pm/lux/internal/resolver"
)

// Legacy *.rockspec files are target-language scripts that assign a
// handful of top-level variables; they are never arbitrary Lua, so
// rather than embed an interpreter this parses the restricted grammar
// every rockspec in the wild actually uses: string/number/bool
// literals and tables, nested arbitrarily, with no control flow.

type luaValueKind int

const (
	luaString luaValueKind = iota
	luaNumber
	luaBool
	luaTable
)

// luaValue is one parsed right-hand side. A luaTable serves double duty
// as both an array (fields consulted by integer index via array) and a
// map (fields consulted by name), exactly like the source format does.
type luaValue struct {
	kind   luaValueKind
	str    string
	num    float64
	bl     bool
	array  []luaValue
	fields map[string]luaValue
}

func (v luaValue) asString() (string, bool) {
	if v.kind != luaString {
		return "", false
	}
	return v.str, true
}

func (v luaValue) asTable() (luaValue, bool) {
	if v.kind != luaTable {
		return luaValue{}, false
	}
	return v, true
}

func (v luaValue) field(name string) (luaValue, bool) {
	if v.kind != luaTable || v.fields == nil {
		return luaValue{}, false
	}
	fv, ok := v.fields[name]
	return fv, ok
}

func (v luaValue) fieldString(name string) string {
	fv, ok := v.field(name)
	if !ok {
		return ""
	}
	s, _ := fv.asString()
	return s
}

type luaParser struct {
	src []byte
	pos int
}

// parseLuaAssignments parses a rockspec's top-level `name = value`
// statements into a name -> value table.
func parseLuaAssignments(src []byte) (map[string]luaValue, error) {
	p := &luaParser{src: src}
	out := make(map[string]luaValue)
	for {
		p.skipSpace()
		if p.atEnd() {
			return out, nil
		}
		name, err := p.parseIdentifier()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if err := p.expect('='); err != nil {
			return nil, err
		}
		p.skipSpace()
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		out[name] = value
		p.skipSpace()
		// a bare trailing semicolon between statements is tolerated
		if !p.atEnd() && p.peek() == ';' {
			p.pos++
		}
	}
}

func (p *luaParser) atEnd() bool { return p.pos >= len(p.src) }

func (p *luaParser) peek() byte {
	if p.atEnd() {
		return 0
	}
	return p.src[p.pos]
}

func (p *luaParser) skipSpace() {
	for !p.atEnd() {
		c := p.src[p.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			p.pos++
		case c == '-' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '-':
			p.pos += 2
			for !p.atEnd() && p.src[p.pos] != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

func (p *luaParser) expect(c byte) error {
	if p.atEnd() || p.src[p.pos] != c {
		return errors.Errorf("rockspec: expected %q at offset %d", c, p.pos)
	}
	p.pos++
	return nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (p *luaParser) parseIdentifier() (string, error) {
	if p.atEnd() || !isIdentStart(p.src[p.pos]) {
		return "", errors.Errorf("rockspec: expected identifier at offset %d", p.pos)
	}
	start := p.pos
	for !p.atEnd() && isIdentChar(p.src[p.pos]) {
		p.pos++
	}
	return string(p.src[start:p.pos]), nil
}

func (p *luaParser) parseValue() (luaValue, error) {
	p.skipSpace()
	if p.atEnd() {
		return luaValue{}, errors.New("rockspec: unexpected end of input")
	}
	switch c := p.peek(); {
	case c == '"' || c == '\'':
		s, err := p.parseString()
		return luaValue{kind: luaString, str: s}, err
	case c == '{':
		return p.parseTable()
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	case isIdentStart(c):
		word, err := p.parseIdentifier()
		if err != nil {
			return luaValue{}, err
		}
		switch word {
		case "true":
			return luaValue{kind: luaBool, bl: true}, nil
		case "false":
			return luaValue{kind: luaBool, bl: false}, nil
		default:
			return luaValue{}, errors.Errorf("rockspec: unexpected bare word %q", word)
		}
	default:
		return luaValue{}, errors.Errorf("rockspec: unexpected character %q at offset %d", c, p.pos)
	}
}

func (p *luaParser) parseString() (string, error) {
	quote := p.src[p.pos]
	p.pos++
	var b strings.Builder
	for {
		if p.atEnd() {
			return "", errors.New("rockspec: unterminated string")
		}
		c := p.src[p.pos]
		if c == quote {
			p.pos++
			return b.String(), nil
		}
		if c == '\\' && p.pos+1 < len(p.src) {
			p.pos++
			switch p.src[p.pos] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '\\', '"', '\'':
				b.WriteByte(p.src[p.pos])
			default:
				b.WriteByte(p.src[p.pos])
			}
			p.pos++
			continue
		}
		b.WriteByte(c)
		p.pos++
	}
}

func (p *luaParser) parseNumber() (luaValue, error) {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	for !p.atEnd() {
		c := p.src[p.pos]
		if (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-' {
			p.pos++
			continue
		}
		break
	}
	n, err := strconv.ParseFloat(string(p.src[start:p.pos]), 64)
	if err != nil {
		return luaValue{}, errors.Wrap(err, "rockspec: invalid number literal")
	}
	return luaValue{kind: luaNumber, num: n}, nil
}

func (p *luaParser) parseTable() (luaValue, error) {
	if err := p.expect('{'); err != nil {
		return luaValue{}, err
	}
	table := luaValue{kind: luaTable, fields: make(map[string]luaValue)}
	for {
		p.skipSpace()
		if p.atEnd() {
			return luaValue{}, errors.New("rockspec: unterminated table")
		}
		if p.peek() == '}' {
			p.pos++
			return table, nil
		}

		if p.peek() == '[' {
			p.pos++
			p.skipSpace()
			key, err := p.parseString()
			if err != nil {
				return luaValue{}, err
			}
			p.skipSpace()
			if err := p.expect(']'); err != nil {
				return luaValue{}, err
			}
			p.skipSpace()
			if err := p.expect('='); err != nil {
				return luaValue{}, err
			}
			p.skipSpace()
			value, err := p.parseValue()
			if err != nil {
				return luaValue{}, err
			}
			table.fields[key] = value
		} else if isIdentStart(p.peek()) {
			mark := p.pos
			name, err := p.parseIdentifier()
			if err != nil {
				return luaValue{}, err
			}
			p.skipSpace()
			if !p.atEnd() && p.peek() == '=' {
				p.pos++
				p.skipSpace()
				value, err := p.parseValue()
				if err != nil {
					return luaValue{}, err
				}
				table.fields[name] = value
			} else {
				// not a key = value pair after all; rewind and parse it
				// as a plain array element (e.g. a bare identifier is
				// never valid here, so this only happens for `true`/`false`).
				p.pos = mark
				value, err := p.parseValue()
				if err != nil {
					return luaValue{}, err
				}
				table.array = append(table.array, value)
			}
		} else {
			value, err := p.parseValue()
			if err != nil {
				return luaValue{}, err
			}
			table.array = append(table.array, value)
		}

		p.skipSpace()
		if !p.atEnd() && p.peek() == ',' {
			p.pos++
		}
	}
}

// parseLegacyDependency parses one LuaRocks-style dependency string,
// e.g. "penlight >= 1.0.0" or "lua >= 5.1, < 5.4", into a PackageReq.
func parseLegacyDependency(s string) (resolver.PackageReq, error) {
	s = strings.TrimSpace(s)
	name := s
	constraintText := ""
	if idx := strings.IndexAny(s, " \t"); idx >= 0 {
		name = s[:idx]
		constraintText = strings.TrimSpace(s[idx+1:])
	}
	constraint, err := resolver.ParseVersionConstraint(constraintText)
	if err != nil {
		return resolver.PackageReq{}, errors.Wrapf(err, "dependency %q", s)
	}
	return resolver.PackageReq{Name: resolver.PackageName(name), Constraint: constraint}, nil
}

// ParseRockspecFile parses a legacy *.rockspec document into a
// ResolvedRockspec. Unlike a lux.toml manifest, a rockspec describes a
// single platform view directly; there is no override algebra to apply.
func ParseRockspecFile(data []byte) (ResolvedRockspec, error) {
	assignments, err := parseLuaAssignments(data)
	if err != nil {
		return ResolvedRockspec{}, &ManifestError{Reason: err.Error()}
	}

	pkgVal, ok := assignments["package"]
	if !ok {
		return ResolvedRockspec{}, &ManifestError{Field: "package", Reason: "missing"}
	}
	pkg, ok := pkgVal.asString()
	if !ok {
		return ResolvedRockspec{}, &ManifestError{Field: "package", Reason: "must be a string"}
	}

	versionVal, ok := assignments["version"]
	if !ok {
		return ResolvedRockspec{}, &ManifestError{Field: "version", Reason: "missing"}
	}
	versionStr, ok := versionVal.asString()
	if !ok {
		return ResolvedRockspec{}, &ManifestError{Field: "version", Reason: "must be a string"}
	}
	version, err := resolver.ParsePackageVersion(versionStr)
	if err != nil {
		return ResolvedRockspec{}, &ManifestError{Field: "version", Reason: err.Error()}
	}

	rockspecFormat := ""
	if fv, ok := assignments["rockspec_format"]; ok {
		rockspecFormat, _ = fv.asString()
	}

	spec := ResolvedRockspec{Package: pkg, Version: version}

	if depsVal, ok := assignments["dependencies"]; ok {
		for _, item := range depsVal.array {
			s, ok := item.asString()
			if !ok {
				continue
			}
			req, err := parseLegacyDependency(s)
			if err != nil {
				return ResolvedRockspec{}, &ManifestError{Field: "dependencies", Reason: err.Error()}
			}
			spec.Dependencies = append(spec.Dependencies, req)
		}
	}
	for _, key := range []string{"build_dependencies", "test_dependencies"} {
		val, ok := assignments[key]
		if !ok {
			continue
		}
		var out []resolver.PackageReq
		for _, item := range val.array {
			s, ok := item.asString()
			if !ok {
				continue
			}
			req, err := parseLegacyDependency(s)
			if err != nil {
				return ResolvedRockspec{}, &ManifestError{Field: key, Reason: err.Error()}
			}
			out = append(out, req)
		}
		if key == "build_dependencies" {
			spec.BuildDependencies = out
		} else {
			spec.TestDependencies = out
		}
	}

	if srcVal, ok := assignments["source"]; ok {
		src, err := parseLegacySource(srcVal)
		if err != nil {
			return ResolvedRockspec{}, &ManifestError{Field: "source", Reason: err.Error()}
		}
		spec.Source = src
	}

	if buildVal, ok := assignments["build"]; ok {
		b, err := parseLegacyBuild(buildVal, rockspecFormat)
		if err != nil {
			return ResolvedRockspec{}, &ManifestError{Field: "build", Reason: err.Error()}
		}
		spec.Build = b
	}

	return spec, nil
}

func parseLegacySource(v luaValue) (fetch.Source, error) {
	url := v.fieldString("url")
	tag := v.fieldString("tag")
	branch := v.fieldString("branch")
	dir := v.fieldString("dir")
	sha256 := v.fieldString("sha256")

	trimmed := strings.TrimPrefix(strings.TrimPrefix(url, "git+"), "git://")
	isGit := strings.HasPrefix(url, "git+") || strings.HasPrefix(url, "git://") || tag != "" || branch != ""
	switch {
	case isGit:
		ref := tag
		if ref == "" {
			ref = branch
		}
		return fetch.Source{Kind: fetch.KindGit, GitURL: trimmed, Ref: ref}, nil
	case strings.HasPrefix(url, "file://"):
		return fetch.Source{Kind: fetch.KindLocal, Path: strings.TrimPrefix(url, "file://")}, nil
	case dir != "" && url == "":
		return fetch.Source{Kind: fetch.KindLocal, Path: dir}, nil
	case url != "":
		return fetch.Source{Kind: fetch.KindRegistry, URL: url, SHA256: sha256}, nil
	default:
		return fetch.Source{}, errors.New("source table declares neither url, tag, branch, nor dir")
	}
}

func parseLegacyBuild(v luaValue, rockspecFormat string) (build.Spec, error) {
	buildType := v.fieldString("type")

	// A 3.0-format builtin build may use features (per-platform module
	// overrides, custom build steps) this dispatcher's builtin backend
	// doesn't implement; fall back to the external compat tool for
	// those rather than silently mis-building them.
	if (buildType == "" || buildType == "builtin") && rockspecFormat == "3.0" {
		return build.Spec{Backend: build.BackendLegacyShim}, nil
	}

	switch buildType {
	case "", "builtin":
		modules := map[string][]string{}
		if modsVal, ok := v.field("modules"); ok {
			for name, modVal := range modsVal.fields {
				switch modVal.kind {
				case luaString:
					modules[name] = []string{modVal.str}
				case luaTable:
					var files []string
					for _, f := range modVal.array {
						if s, ok := f.asString(); ok {
							files = append(files, s)
						}
					}
					modules[name] = files
				}
			}
		}
		return build.Spec{Backend: build.BackendBuiltin, Modules: modules}, nil
	case "make":
		target := "install"
		if mv, ok := v.field("build_target"); ok {
			if s, ok := mv.asString(); ok {
				target = s
			}
		}
		return build.Spec{Backend: build.BackendMake, Target: target}, nil
	case "cmake":
		return build.Spec{Backend: build.BackendCMake}, nil
	case "command":
		var argv []string
		if cv, ok := v.field("build_command"); ok {
			if s, ok := cv.asString(); ok {
				argv = strings.Fields(s)
			}
		}
		return build.Spec{Backend: build.BackendCommand, Command: argv}, nil
	default:
		// Any backend this parser doesn't know (cvs/svn-era build
		// types, third-party extensions) is handed to the compat tool
		// rather than rejected outright.
		return build.Spec{Backend: build.BackendLegacyShim}, nil
	}
}

// GenerateRockspec renders r as a deterministic legacy *.rockspec
// document. Git sources are always written with a `tag` field, never
// `branch`, so repeated generation from the same resolved state is
// byte-identical regardless of how the ref was originally declared.
func GenerateRockspec(r ResolvedRockspec) string {
	var b strings.Builder

	fmt.Fprintf(&b, "package = %q\n", r.Package)
	fmt.Fprintf(&b, "version = %q\n", r.Version.String())
	b.WriteString("\n")

	writeSourceTable(&b, r.Source)
	b.WriteString("\n")

	writeDependencyList(&b, "dependencies", r.Dependencies)
	if len(r.BuildDependencies) > 0 {
		writeDependencyList(&b, "build_dependencies", r.BuildDependencies)
	}
	if len(r.TestDependencies) > 0 {
		writeDependencyList(&b, "test_dependencies", r.TestDependencies)
	}
	b.WriteString("\n")

	writeBuildTable(&b, r.Build)

	return b.String()
}

func writeSourceTable(b *strings.Builder, src fetch.Source) {
	b.WriteString("source = {\n")
	switch src.Kind {
	case fetch.KindGit:
		fmt.Fprintf(b, "   url = %q,\n", "git+"+src.GitURL)
		if src.Ref != "" {
			fmt.Fprintf(b, "   tag = %q,\n", src.Ref)
		}
	case fetch.KindLocal:
		fmt.Fprintf(b, "   url = %q,\n", "file://"+src.Path)
	case fetch.KindRegistry:
		fmt.Fprintf(b, "   url = %q,\n", src.URL)
		if src.SHA256 != "" {
			fmt.Fprintf(b, "   sha256 = %q,\n", src.SHA256)
		}
	}
	b.WriteString("}\n")
}

func writeDependencyList(b *strings.Builder, key string, reqs []resolver.PackageReq) {
	sorted := make([]resolver.PackageReq, len(reqs))
	copy(sorted, reqs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	fmt.Fprintf(b, "%s = {\n", key)
	for _, r := range sorted {
		if r.Constraint.String() == "*" {
			fmt.Fprintf(b, "   %q,\n", r.Name)
		} else {
			fmt.Fprintf(b, "   %q,\n", fmt.Sprintf("%s %s", r.Name, legacyConstraintText(r.Constraint)))
		}
	}
	b.WriteString("}\n")
}

// legacyConstraintText renders a constraint the way LuaRocks dependency
// strings do: clauses joined by ", " rather than the manifest's bare
// comma, each with a space before the version.
func legacyConstraintText(c resolver.VersionConstraint) string {
	raw := c.String()
	parts := strings.Split(raw, ",")
	for i, p := range parts {
		found := false
		for _, opLen := range []int{2, 1} {
			if len(p) < opLen {
				continue
			}
			op := p[:opLen]
			switch op {
			case ">=", "<=", "==", "!=", "~>":
				parts[i] = op + " " + p[opLen:]
				found = true
			}
			if found {
				break
			}
		}
		if found {
			continue
		}
		for _, op := range []string{">", "<", "="} {
			if strings.HasPrefix(p, op) {
				parts[i] = op + " " + p[len(op):]
				break
			}
		}
	}
	return strings.Join(parts, ", ")
}

func writeBuildTable(b *strings.Builder, spec build.Spec) {
	b.WriteString("build = {\n")
	switch spec.Backend {
	case build.BackendBuiltin:
		b.WriteString("   type = \"builtin\",\n")
		if len(spec.Modules) > 0 {
			b.WriteString("   modules = {\n")
			names := make([]string, 0, len(spec.Modules))
			for name := range spec.Modules {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				files := spec.Modules[name]
				if len(files) == 1 {
					fmt.Fprintf(b, "      %s = %q,\n", name, files[0])
				} else {
					fmt.Fprintf(b, "      %s = {", name)
					for i, f := range files {
						if i > 0 {
							b.WriteString(", ")
						}
						fmt.Fprintf(b, "%q", f)
					}
					b.WriteString("},\n")
				}
			}
			b.WriteString("   }\n")
		}
	case build.BackendMake:
		b.WriteString("   type = \"make\",\n")
		fmt.Fprintf(b, "   build_target = %q,\n", spec.Target)
	case build.BackendCMake:
		b.WriteString("   type = \"cmake\",\n")
	case build.BackendCommand:
		b.WriteString("   type = \"command\",\n")
		fmt.Fprintf(b, "   build_command = %q,\n", strings.Join(spec.Command, " "))
	default:
		b.WriteString("   type = \"builtin\",\n")
		fmt.Fprintf(b, "   rockspec_format = \"3.0\",\n")
	}
	b.WriteString("}\n")
}
