package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JonMunkholm/csvclean/internal/app"
	"github.com/JonMunkholm/csvclean/internal/config"
	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/dataset"
	"github.com/JonMunkholm/csvclean/internal/logging"
	"github.com/JonMunkholm/csvclean/internal/pipeline"
	"github.com/JonMunkholm/csvclean/internal/quota"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// cliIdentity is the quota identity of local runs.
const cliIdentity = "cli:local"

// cleanReport is what the clean command prints.
type cleanReport struct {
	JobID  string          `json:"job_id" yaml:"job_id"`
	File   string          `json:"file" yaml:"file"`
	Report pipeline.Report `json:"report" yaml:"report"`
	Usage  core.UsageInfo  `json:"usage" yaml:"usage"`
}

func cleanAction(c *cli.Context) error {
	format := strings.ToLower(c.String("report-format"))
	if format != "yaml" && format != "json" {
		return fmt.Errorf("--report-format must be yaml or json, got %q", c.String("report-format"))
	}
	tier, err := quota.ParseTier(c.String("tier"))
	if err != nil {
		return err
	}

	logging.SetupWriter(c.App.ErrWriter, c.String("log-level"), c.String("log-format"))

	cfg, err := loadConfig(c.String("policy-file"))
	if err != nil {
		return err
	}
	a, err := app.New(c.Context, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	in, err := os.Open(c.Path("in"))
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}

	caller := core.Caller{Identity: cliIdentity, Tier: tier, Anonymous: tier == quota.TierAnonymous}
	result, err := a.Service.Clean(c.Context, caller, core.CleanRequest{
		FileName:     info.Name(),
		Size:         info.Size(),
		Body:         in,
		Instructions: c.String("instructions"),
	})
	if err != nil {
		if core.IsUserFacing(err) {
			return errors.New(core.FormatUserError(err))
		}
		return err
	}

	reportOut := c.App.Writer
	if out := c.Path("out"); out != "" {
		if err := writeCSVFile(out, result.Data); err != nil {
			return err
		}
	} else {
		if err := dataset.Write(c.App.Writer, result.Data); err != nil {
			return err
		}
		reportOut = c.App.ErrWriter
	}

	return writeReport(reportOut, format, cleanReport{
		JobID:  result.JobID,
		File:   info.Name(),
		Report: result.Report,
		Usage:  result.Usage,
	})
}

func tiersAction(c *cli.Context) error {
	policies, err := quota.LoadPolicies(c.Path("policy-file"))
	if err != nil {
		return err
	}

	// Map keys sort, so print in tier order instead.
	out := yaml.Node{Kind: yaml.MappingNode}
	for _, tier := range quota.Tiers {
		var value yaml.Node
		if err := value.Encode(policies[tier]); err != nil {
			return err
		}
		out.Content = append(out.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: string(tier)}, &value)
	}

	doc := yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
		{Kind: yaml.ScalarNode, Value: "tiers"}, &out,
	}}
	enc := yaml.NewEncoder(c.App.Writer)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return err
	}
	return enc.Close()
}

// loadConfig reads the environment and pins the CLI to an in-memory store.
func loadConfig(policyFile string) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.Store = config.StoreConfig{Driver: "memory"}
	cfg.Clean.MaxConcurrent = 1
	cfg.Quota.PolicyFile = policyFile
	return cfg, nil
}

func writeCSVFile(path string, ds *dataset.Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := dataset.Write(f, ds); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func writeReport(w io.Writer, format string, r cleanReport) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}
