package cli

import "flag"

// ReconFlags are the flags for the default reconcile command.
type ReconFlags struct {
	Bank      string
	Ledger    string
	Config    string
	Out       string
	Strict    bool
	Slack     bool
	Summarize bool
	JSON      bool
	Verbose   bool
}

// ParseReconFlags parses reconcile flags from the given arguments.
func ParseReconFlags(args []string) (*ReconFlags, error) {
	flags := &ReconFlags{}
	fs := flag.NewFlagSet("recon", flag.ContinueOnError)
	fs.StringVar(&flags.Bank, "bank", "", "Path to the bank statement CSV")
	fs.StringVar(&flags.Ledger, "ledger", "", "Path to the rent ledger CSV")
	fs.StringVar(&flags.Config, "config", "config.yaml", "Configuration file path")
	fs.StringVar(&flags.Out, "out", "reports", "Directory for CSV exports (empty to skip)")
	fs.BoolVar(&flags.Strict, "strict", false, "Abort on the first bad CSV row")
	fs.BoolVar(&flags.Slack, "slack", false, "Post the run digest to the configured Slack webhook")
	fs.BoolVar(&flags.Summarize, "summarize", false, "Generate and print the narrative summary")
	fs.BoolVar(&flags.JSON, "json", false, "Print the report as JSON")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}

// FixtureFlags are the flags for the fixtures command.
type FixtureFlags struct {
	Dir     string
	Tenants int
	Seed    int64
}

// ParseFixtureFlags parses fixtures flags from the given arguments.
func ParseFixtureFlags(args []string) (*FixtureFlags, error) {
	flags := &FixtureFlags{}
	fs := flag.NewFlagSet("fixtures", flag.ContinueOnError)
	fs.StringVar(&flags.Dir, "dir", "data", "Directory to write the sample CSVs to")
	fs.IntVar(&flags.Tenants, "tenants", 8, "Number of tenants to generate")
	fs.Int64Var(&flags.Seed, "seed", 0, "Random seed (0 picks one from the clock)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}

// ServeFlags holds the CLI flags for the API server.
type ServeFlags struct {
	Config  string
	Port    int
	Verbose bool
}

// ParseServeFlags parses server flags from the given arguments.
func ParseServeFlags(args []string) (*ServeFlags, error) {
	flags := &ServeFlags{}
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.StringVar(&flags.Config, "config", "config.yaml", "Configuration file path")
	fs.IntVar(&flags.Port, "port", 0, "Port to listen on (overrides config)")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}
