package cli

import "flag"

const versionString = "1.0.0"

type cliOptions struct {
	configPath string
	once       bool
	check      bool
	stdout     bool
	inPlace    bool
	outDir     string
	tsv        string
	workers    int
	runs       int
	verbose    bool
	version    bool
	args       []string
}

func parseOptions(args []string) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("handbook", flag.ContinueOnError)

	fs.StringVar(&opts.configPath, "config", "", "Path to config file (default: nearest handbook.toml)")
	fs.BoolVar(&opts.once, "once", false, "Transform once and exit")
	fs.BoolVar(&opts.check, "check", false, "Report files that would change without writing; exits 1 if any would")
	fs.BoolVar(&opts.stdout, "stdout", false, "Print transformed sources to stdout")
	fs.BoolVar(&opts.inPlace, "inplace", false, "Rewrite sources in place")
	fs.StringVar(&opts.outDir, "out", "", "Mirror transformed sources into this directory")
	fs.StringVar(&opts.tsv, "tsv", "", "Write a TSV report of macro call sites to this path")
	fs.IntVar(&opts.workers, "workers", 0, "Number of files transformed concurrently")
	fs.IntVar(&opts.runs, "runs", 0, "Print the last N recorded runs as TSV and exit")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}

	opts.args = fs.Args()
	return opts, nil
}
