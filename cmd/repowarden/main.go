package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printHelp()
		return nil
	}

	switch args[0] {
	case "agents":
		return runAgents(args[1:])
	case "invoke":
		return runInvoke(args[1:])
	case "chains":
		return runChains(args[1:])
	case "chain":
		return runChain(args[1:])
	case "executions":
		return runExecutions(args[1:])
	case "runs":
		return runRuns(args[1:])
	case "migrate":
		return runMigrate(args[1:])
	default:
		printHelp()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `Usage: repowarden <command> [options]

Commands:
  agents       List or inspect registered agent definitions
  invoke       Run a single agent against a repository
  chains       List the chain catalog
  chain        Run a chain against a repository
  executions   List or inspect execution records
  runs         List, inspect or delete chain run records
  migrate      Apply database migrations (postgres backend only)
  help         Show this help message

Examples:
  repowarden agents list
  repowarden agents show repo-scanner
  repowarden invoke --agent repo-scanner --repo . --mode schema
  repowarden chain --name scan-and-plan --repo . --mode live --input '{"repo_root":"."}'
  repowarden runs list --repo .
  repowarden runs delete 3f6c...
`)
}
