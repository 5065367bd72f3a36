// Command pk-direct is the in-process direct harness (spec §4.L): one
// command maps to one synchronous Job run straight through an Engine,
// no D-Bus, no frontend socket, printing exactly the events a test
// would assert against.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkgkitd/pkgkitd/backend"
	"github.com/pkgkitd/pkgkitd/engine"
	"github.com/pkgkitd/pkgkitd/internal/pkgconfig"
	"github.com/pkgkitd/pkgkitd/internal/pkglog"
	"github.com/pkgkitd/pkgkitd/internal/pkgerrors"
	"github.com/pkgkitd/pkgkitd/job"
	"github.com/pkgkitd/pkgkitd/pkgenum"
	"github.com/pkgkitd/pkgkitd/pkgid"
	"github.com/pkgkitd/pkgkitd/plugin"
	"github.com/pkgkitd/pkgkitd/query"
	"github.com/pkgkitd/pkgkitd/refresh"
	"github.com/pkgkitd/pkgkitd/sack"
	"github.com/pkgkitd/pkgkitd/transaction"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	root := flag.NewFlagSet("pk-direct", flag.ContinueOnError)
	root.SetOutput(io.Discard)
	configPath := root.String("config", "", "path to the daemon's [Daemon]/[Updates] INI config (§6); absence runs on defaults")
	backendName := root.String("backend", "", "backend name to report (overrides DefaultBackend from config)")
	if err := root.Parse(args); err != nil {
		printUsage()
		return err
	}
	remaining := root.Args()
	if len(remaining) == 0 {
		printUsage()
		return errors.New("no command specified")
	}

	cfg, err := pkgconfig.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	name := *backendName
	if name == "" {
		name = cfg.Daemon.DefaultBackend
	}
	if name == "" || name == "auto" {
		name = "fixture"
	}

	eng := buildEngine(name, cfg)

	cmd, rest := remaining[0], remaining[1:]
	switch cmd {
	case "refresh":
		return runJob(ctx, eng, pkgenum.RoleRefreshCache, nil)
	case "refresh-force":
		return runJob(ctx, eng, pkgenum.RoleRefreshCache, []string{"force"})
	case "search-name":
		return runJob(ctx, eng, pkgenum.RoleSearchName, searchParams(rest))
	case "search-detail":
		return runJob(ctx, eng, pkgenum.RoleSearchDetails, searchParams(rest))
	case "search-file":
		return runJob(ctx, eng, pkgenum.RoleSearchFile, searchParams(rest))
	case "resolve":
		return runJob(ctx, eng, pkgenum.RoleResolve, searchParams(rest))
	case "what-provides":
		return runJob(ctx, eng, pkgenum.RoleWhatProvides, searchParams(rest))
	case "get-updates":
		return runJob(ctx, eng, pkgenum.RoleGetUpdates, nil)
	case "get-details":
		return runJob(ctx, eng, pkgenum.RoleSearchDetails, searchParams(rest))
	case "get-files":
		return runJob(ctx, eng, pkgenum.RoleGetFiles, rest)
	case "get-repo-list":
		return runJob(ctx, eng, pkgenum.RoleGetRepoList, nil)
	case "install":
		return runJob(ctx, eng, pkgenum.RoleInstallPackages, rest)
	case "remove":
		return runJob(ctx, eng, pkgenum.RoleRemovePackages, rest)
	case "repo-set-data":
		return errors.New("repo-set-data: no repo-configuration collaborator wired in the fixture harness")
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// searchParams splits pk-direct's "<filter> <term...>" argument
// convention into the filter-text-first form the engine's
// searchHandler expects; "none" is used when the caller passes none.
func searchParams(args []string) []string {
	if len(args) == 0 {
		return []string{"none"}
	}
	return args
}

func buildEngine(backendName string, cfg *pkgconfig.Config) *engine.Engine {
	log := pkglog.NewFromEnv("pk-direct")
	log.WithField("dest_dir", cfg.Daemon.DestDir).WithField("backend", backendName).Info("starting direct harness")
	world := newFixtureWorld()

	b := backend.New(backendName, false)
	cache := sack.NewCache(world.buildSack)

	eng := engine.New(b, cache, log)
	eng.ReleaseVer = "42"
	eng.SackFlags = sack.FlagSet(0).Add(sack.FlagRemote)
	eng.NativeArches = []string{"x86_64"}
	eng.Meta = func(id pkgid.ID) query.Meta {
		return query.Meta{}
	}

	eng.Refresh = &refresh.Scheduler{
		Lister: fixtureRepos{},
		Loader: fixtureRepos{},
		Sack:   noopRebuilder{},
		Log:    log,
	}
	eng.Transaction = &transaction.Planner{
		Solver:     world,
		Installed:  world,
		RepoGPG:    world,
		Downloader: world,
		Committer:  world,
		TransactionInhibitStart: func() { b.TransactionInhibitStart() },
		TransactionInhibitEnd:   func() { b.TransactionInhibitEnd() },
	}
	eng.Plugins = plugin.NewRegistry(log)

	eng.RegisterRoles()
	_ = b.Load("")
	return eng
}

func runJob(ctx context.Context, eng *engine.Engine, role pkgenum.Role, params []string) error {
	j := job.NewJob(role, params)
	attachPrinters(j)

	err := eng.RunSynchronously(ctx, j)
	exit := pkgenum.ExitSuccess
	if err != nil {
		exit = pkgenum.ExitFailed
	}
	fmt.Printf("Exit code: %s\n", exit)
	return err
}

func attachPrinters(j *job.Job) {
	j.OnPackage(func(p job.Package) {
		fmt.Printf("package\t%s\t%s\t%s\n", p.Info, p.ID.String(), p.Summary)
	})
	j.OnStatus(func(s pkgenum.Status) {
		fmt.Printf("status\t%s\n", s)
	})
	j.OnPercentage(func(p int) {
		fmt.Printf("percentage\t%d\n", p)
	})
	j.OnItemProgress(func(p job.ItemProgress) {
		fmt.Printf("item-progress\t%s\t%s\t%d\n", p.ID.String(), p.Status, p.Percent)
	})
	j.OnMessage(func(m job.Message) {
		fmt.Printf("message\t%s\t%s\n", m.Type, m.Text)
	})
	j.OnFiles(func(f job.Files) {
		fmt.Printf("files\t%s\t%s\n", f.ID.String(), strings.Join(f.Files, ";"))
	})
	j.OnRepoDetail(func(r job.RepoDetail) {
		fmt.Printf("repo-detail\t%s\t%t\t%s\n", r.ID, r.Enabled, r.Description)
	})
	j.OnErrorCode(func(e *pkgerrors.JobError) {
		fmt.Printf("error\t%s\t%s\n", e.Code, e.Message)
	})
}

func printUsage() {
	fmt.Println(strings.TrimSpace(`
pk-direct [--config=<path>] [--backend=<name>] <command> [args...]

Commands:
  refresh
  refresh-force
  search-name <filter> <term>
  search-detail <filter> <term>
  search-file <filter> <path>
  resolve <filter> <name>
  what-provides <filter> <capability>
  get-updates
  get-details <filter> <name>
  get-files <package-id>...
  get-repo-list
  install <package-id>...
  remove <package-id>...
  repo-set-data <repo-id> <key> <value>
`))
}
