package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"rent-reconciliation-backend/internal/cli"
	"rent-reconciliation-backend/internal/domain/report"
	"rent-reconciliation-backend/internal/infrastructure/config"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env")
	}

	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "fixtures":
			runFixtures(args[1:])
			return
		case "help", "--help":
			printUsage()
			return
		}
	}
	runReconcile(args)
}

func runReconcile(args []string) {
	flags, err := cli.ParseReconFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(1)
	}

	cfg := config.LoadOrEnvPath(flags.Config)
	if err := cli.RunReconcile(cfg, flags); err != nil {
		fmt.Fprintf(os.Stderr, "recon: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func runFixtures(args []string) {
	flags, err := cli.ParseFixtureFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(1)
	}

	if err := cli.RunFixtures(flags); err != nil {
		fmt.Fprintf(os.Stderr, "recon: %v\n", err)
		os.Exit(1)
	}
}

// exitCode maps failures to the documented exit codes: 1 for input and
// configuration problems, 2 for a report that fails its own consistency
// checks.
func exitCode(err error) int {
	var consistency *report.InternalConsistencyError
	if errors.As(err, &consistency) {
		return 2
	}
	return 1
}

func printUsage() {
	fmt.Println("Rent reconciliation CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  recon -bank bank.csv -ledger ledger.csv [options]")
	fmt.Println("  recon fixtures [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  (default)  Reconcile a bank statement against a rent ledger")
	fmt.Println("  fixtures   Generate synthetic sample CSVs")
	fmt.Println("  help       Show this help message")
	fmt.Println("\nRun 'recon -h' or 'recon fixtures -h' for options.")
}
