// Command csvclean cleans a CSV file locally with the same pipeline the
// server runs.
//
//	csvclean clean --in data.csv --out cleaned.csv --instructions "drop the notes column"
//	csvclean tiers --policy-file tiers.yaml
//
// Language model settings come from the environment (LLM_PROVIDER,
// LLM_API_KEY, ...), optionally loaded from a .env file. Usage is counted in
// memory, so each run starts with a fresh quota.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	// A missing .env is normal for the CLI.
	_ = godotenv.Load()

	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "csvclean:", err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "csvclean",
		Usage:     "clean and score CSV files",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Value:   "warn",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "text or json",
				Value:   "text",
				EnvVars: []string{"LOG_FORMAT"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "clean",
				Usage:  "clean a CSV file and print the quality report",
				Action: cleanAction,
				Flags: []cli.Flag{
					&cli.PathFlag{Name: "in", Aliases: []string{"i"}, Usage: "CSV file to clean", Required: true},
					&cli.PathFlag{Name: "out", Aliases: []string{"o"}, Usage: "where to write the cleaned CSV (default: stdout, report goes to stderr)"},
					&cli.StringFlag{Name: "instructions", Usage: "free-text cleaning instruction"},
					&cli.StringFlag{Name: "tier", Usage: "anonymous, free, pro or enterprise", Value: "pro"},
					&cli.StringFlag{Name: "report-format", Usage: "yaml or json", Value: "yaml"},
					&cli.PathFlag{Name: "policy-file", Usage: "YAML tier policies", EnvVars: []string{"QUOTA_POLICY_FILE"}},
				},
			},
			{
				Name:   "tiers",
				Usage:  "print the effective tier policies",
				Action: tiersAction,
				Flags: []cli.Flag{
					&cli.PathFlag{Name: "policy-file", Usage: "YAML tier policies", EnvVars: []string{"QUOTA_POLICY_FILE"}},
				},
			},
		},
	}
}
