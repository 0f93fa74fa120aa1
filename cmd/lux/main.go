// Command lux is a minimal CLI wrapper over the root lux package. It
// exists so the library has a runnable entry point; a full parser with
// shell completion and TUI progress rendering is an external collaborator
// left to wrap this with something richer.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/lux-pm/lux"
	"github.com/lux-pm/lux/internal/build"
	luxconfig "github.com/lux-pm/lux/internal/config"
	"github.com/lux-pm/lux/internal/registry"
)

type command interface {
	Name() string
	ShortHelp() string
	Register(*flag.FlagSet)
	Run(ctx context.Context, c *cliConfig, args []string) error
}

// cliConfig carries the flags every subcommand shares.
type cliConfig struct {
	registryURL string
	treeRoot    string
	cacheDir    string
	abiVersion  string
	onlySources string
	timeout     time.Duration
	logger      *log.Logger
}

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) (exitCode int) {
	outLogger := log.New(stdout, "", 0)
	errLogger := log.New(stderr, "", 0)

	commands := []command{
		&syncCommand{},
		&syncDependenciesCommand{},
		&syncBuildDependenciesCommand{},
		&syncTestDependenciesCommand{},
		&runCommand{},
		&execCommand{},
		&shellCommand{},
		&purgeCommand{},
		&listCommand{},
	}

	usage := func() {
		errLogger.Println("lux manages Lua rock dependencies for a project")
		errLogger.Println()
		errLogger.Println("Usage: lux <command> [flags]")
		errLogger.Println()
		errLogger.Println("Commands:")
		w := tabwriter.NewWriter(stderr, 0, 4, 2, ' ', 0)
		for _, cmd := range commands {
			fmt.Fprintf(w, "\t%s\t%s\n", cmd.Name(), cmd.ShortHelp())
		}
		w.Flush()
	}

	if len(args) < 2 {
		usage()
		return 1
	}

	for _, cmd := range commands {
		if cmd.Name() != args[1] {
			continue
		}

		fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
		fs.SetOutput(stderr)
		c := &cliConfig{timeout: 5 * time.Minute, logger: outLogger}
		fs.StringVar(&c.registryURL, "registry", "https://rocks.example.test", "registry base URL")
		fs.StringVar(&c.treeRoot, "tree", "", "install tree root (required)")
		fs.StringVar(&c.cacheDir, "cache", "", "fetch scratch/cache directory (required)")
		fs.StringVar(&c.abiVersion, "abi", "5.4", "Lua ABI version to install against")
		fs.StringVar(&c.onlySources, "only-sources", "", "comma-separated registry names to restrict resolution to")
		cmd.Register(fs)

		if err := fs.Parse(args[2:]); err != nil {
			return 1
		}
		if c.treeRoot == "" || c.cacheDir == "" {
			errLogger.Println("lux: -tree and -cache are required")
			return 1
		}

		if err := cmd.Run(context.Background(), c, fs.Args()); err != nil {
			errLogger.Printf("lux: %v\n", err)
			return 1
		}
		return 0
	}

	errLogger.Printf("lux: %s: no such command\n", args[1])
	usage()
	return 1
}

// loadCtx builds a Ctx from cfg's flags, with no project requirement —
// the one piece purge needs that every other subcommand also needs plus
// a loaded project.
func loadCtx(c *cliConfig) (*lux.Ctx, error) {
	builder := luxconfig.NewBuilder().
		TreeRoot(c.treeRoot).
		CacheDir(c.cacheDir).
		InterpreterVersion(c.abiVersion).
		Timeout(c.timeout).
		AddRegistry(registry.Server{Name: "primary", BaseURL: c.registryURL})
	if c.onlySources != "" {
		builder = builder.OnlySources(strings.Split(c.onlySources, ",")...)
	}
	cfg, err := builder.Build()
	if err != nil {
		return nil, err
	}
	return lux.NewContext(cfg, c.logger), nil
}

// loadContext builds a Ctx and loads the project rooted at the current
// working directory, the shared first step every subcommand below needs
// except purge.
func loadContext(c *cliConfig) (*lux.Ctx, *lux.Project, error) {
	ctx, err := loadCtx(c)
	if err != nil {
		return nil, nil, err
	}
	project, err := ctx.LoadProject("")
	if err != nil {
		return nil, nil, err
	}
	return ctx, project, nil
}

// loadSyncer opens the project rooted at the current working directory
// and wires a Syncer against a single HTTP registry at c.registryURL.
func loadSyncer(c *cliConfig) (*lux.Syncer, error) {
	ctx, project, err := loadContext(c)
	if err != nil {
		return nil, err
	}

	client := registry.NewHTTPClient(c.registryURL, c.timeout)
	db := registry.New(ctx.Config.Registries, map[string]registry.Client{"primary": client}, nil)
	db.WithOnlySources(ctx.Config.OnlySources)
	source := lux.NewRemoteSource(db, build.Interpreter{ABIVersion: c.abiVersion})

	return lux.NewSyncer(ctx, project, source), nil
}
