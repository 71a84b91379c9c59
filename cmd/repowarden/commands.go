package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/Strob0t/RepoWarden/internal/adapter/postgres"
	"github.com/Strob0t/RepoWarden/internal/config"
	"github.com/Strob0t/RepoWarden/internal/domain/chain"
	"github.com/Strob0t/RepoWarden/internal/domain/document"
	"github.com/Strob0t/RepoWarden/internal/domain/execution"
	"github.com/Strob0t/RepoWarden/internal/port/store"
)

func runAgents(args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}

	ctx := context.Background()
	d, cleanup, err := loadDeps(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	switch args[0] {
	case "list":
		defs := d.registry.ListAll()
		if len(defs) == 0 {
			fmt.Println("No agents registered.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "NAME\tCLASS\tGOAL\tSOURCE")
		for _, def := range defs {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				def.Name, def.Class, truncateCol(def.Goal, 60), def.SourcePath)
		}
		return w.Flush()

	case "show":
		if len(args) < 2 {
			return fmt.Errorf("usage: repowarden agents show <name>")
		}
		def := d.registry.Get(args[1])
		if def == nil {
			return fmt.Errorf("agent %q not found", args[1])
		}
		return printJSON(def)

	default:
		return fmt.Errorf("unknown agents command: %s", args[0])
	}
}

func runInvoke(args []string) error {
	fs := flag.NewFlagSet("invoke", flag.ContinueOnError)
	agent := fs.String("agent", "", "agent name (required)")
	repo := fs.String("repo", ".", "repository root")
	mode := fs.String("mode", string(execution.ModeSchema), "execution mode: no-op, schema or live")
	input := fs.String("input", "", "input document as JSON, or @file")
	caller := fs.String("caller", "cli", "caller identity recorded on the execution")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *agent == "" {
		return fmt.Errorf("--agent is required")
	}

	doc, err := parseInput(*input)
	if err != nil {
		return err
	}

	d, cleanup, err := loadDeps(context.Background())
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Gateway.Timeout)
	defer cancel()

	rec, err := d.harness.Invoke(ctx, execution.Context{
		RepoRoot:  *repo,
		AgentName: *agent,
		Mode:      execution.Mode(*mode),
		Caller:    *caller,
		Input:     doc,
	})
	if err != nil {
		return err
	}
	return printJSON(rec)
}

func runChains(args []string) error {
	if len(args) > 0 && args[0] != "list" {
		return fmt.Errorf("unknown chains command: %s", args[0])
	}

	d, cleanup, err := loadDeps(context.Background())
	if err != nil {
		return err
	}
	defer cleanup()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tSTEPS\tBUILTIN\tDESCRIPTION")
	for _, c := range d.chains.List() {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%t\t%s\n",
			c.Name, len(c.Steps), c.Builtin, truncateCol(c.Description, 70))
	}
	return w.Flush()
}

func runChain(args []string) error {
	fs := flag.NewFlagSet("chain", flag.ContinueOnError)
	name := fs.String("name", "", "chain name (required)")
	repo := fs.String("repo", ".", "repository root")
	mode := fs.String("mode", string(execution.ModeSchema), "execution mode: no-op, schema or live")
	input := fs.String("input", "", "initial input document as JSON, or @file")
	caller := fs.String("caller", "cli", "caller identity recorded on the run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("--name is required")
	}

	doc, err := parseInput(*input)
	if err != nil {
		return err
	}

	d, cleanup, err := loadDeps(context.Background())
	if err != nil {
		return err
	}
	defer cleanup()

	run, err := d.orchestrator.RunChain(context.Background(), *name, *repo, *caller, execution.Mode(*mode), doc)
	if err != nil {
		return err
	}
	return printJSON(run)
}

func runExecutions(args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}

	d, cleanup, err := loadDeps(context.Background())
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("executions list", flag.ContinueOnError)
		repo := fs.String("repo", "", "filter by repository root")
		agent := fs.String("agent", "", "filter by agent name")
		status := fs.String("status", "", "filter by status")
		limit := fs.Int("limit", 50, "maximum records")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		execs, err := d.store.ListExecutions(ctx, store.ExecutionFilter{
			RepoRoot:  *repo,
			AgentName: *agent,
			Status:    execution.Status(*status),
			Limit:     *limit,
		})
		if err != nil {
			return err
		}
		if len(execs) == 0 {
			fmt.Println("No executions found.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tAGENT\tMODE\tSTATUS\tSTARTED\tDURATION")
		for i := range execs {
			e := &execs[i]
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.ID, e.AgentName, e.Mode, e.Status,
				e.StartedAt.Format(time.RFC3339), e.Duration.Round(time.Millisecond))
		}
		return w.Flush()

	case "get":
		if len(args) < 2 {
			return fmt.Errorf("usage: repowarden executions get <id>")
		}
		rec, err := d.store.GetExecution(ctx, args[1])
		if err != nil {
			return err
		}
		return printJSON(rec)

	default:
		return fmt.Errorf("unknown executions command: %s", args[0])
	}
}

func runRuns(args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}

	d, cleanup, err := loadDeps(context.Background())
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("runs list", flag.ContinueOnError)
		repo := fs.String("repo", "", "filter by repository root")
		chainName := fs.String("chain", "", "filter by chain name")
		status := fs.String("status", "", "filter by status")
		limit := fs.Int("limit", 50, "maximum records")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		runs, err := d.store.ListRuns(ctx, store.RunFilter{
			RepoRoot:  *repo,
			ChainName: *chainName,
			Status:    chain.Status(*status),
			Limit:     *limit,
		})
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs found.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tCHAIN\tSTATUS\tSTEPS\tSTARTED")
		for i := range runs {
			r := &runs[i]
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				r.ID, r.ChainName, r.Status, len(r.Steps), r.StartedAt.Format(time.RFC3339))
		}
		return w.Flush()

	case "get":
		if len(args) < 2 {
			return fmt.Errorf("usage: repowarden runs get <id>")
		}
		run, err := d.store.GetChainRun(ctx, args[1])
		if err != nil {
			return err
		}
		return printJSON(run)

	case "delete":
		fs := flag.NewFlagSet("runs delete", flag.ContinueOnError)
		yes := fs.Bool("yes", false, "skip the confirmation prompt")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if fs.NArg() < 1 {
			return fmt.Errorf("usage: repowarden runs delete [--yes] <id>")
		}
		id := fs.Arg(0)
		if !*yes {
			ok, err := confirm(fmt.Sprintf("Delete run %s and its step records? [y/N] ", id))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(os.Stderr, "Aborted.")
				return nil
			}
		}
		if err := d.store.DeleteRun(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Run %s deleted.\n", id)
		return nil

	default:
		return fmt.Errorf("unknown runs command: %s", args[0])
	}
}

func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Storage.Backend != config.BackendPostgres {
		return fmt.Errorf("migrate requires the postgres backend, configured backend is %q", cfg.Storage.Backend)
	}

	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, cfg.Storage.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	version, err := postgres.MigrationVersion(ctx, cfg.Storage.Postgres.DSN)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Migrations applied, schema version %d.\n", version)
	return nil
}

// parseInput decodes an input document from an inline JSON string or,
// with a leading @, from a file.
func parseInput(arg string) (document.Document, error) {
	if arg == "" {
		return nil, nil
	}
	data := []byte(arg)
	if strings.HasPrefix(arg, "@") {
		var err error
		data, err = os.ReadFile(arg[1:])
		if err != nil {
			return nil, fmt.Errorf("read input file: %w", err)
		}
	}
	doc, err := document.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	return doc, nil
}

// confirm asks a yes/no question on the controlling terminal. A
// non-interactive stdin refuses rather than assuming consent.
func confirm(prompt string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, fmt.Errorf("stdin is not a terminal; pass --yes to confirm")
	}
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncateCol shortens a value for tabular display.
func truncateCol(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
