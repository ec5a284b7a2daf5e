package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/starlingx/metal-sub001/internal/client"
	"github.com/starlingx/metal-sub001/internal/health"
)

// errUnhealthy makes the process exit 1 without printing another error
var errUnhealthy = errors.New("system is not healthy")

type queryOptions struct {
	force   bool
	upgrade bool
	output  string
	token   string
}

func newQueryCmd() *cobra.Command {
	opts := &queryOptions{}
	cmd := &cobra.Command{
		Use:   "health-query",
		Short: "Evaluate system health once and print the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "ignore alarms that are not management affecting")
	cmd.Flags().BoolVar(&opts.upgrade, "upgrade", false, "run the upgrade checks")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "text", "output format: text, json or yaml")
	cmd.Flags().StringVar(&opts.token, "os-auth-token", os.Getenv("OS_AUTH_TOKEN"), "keystone token sent to peer services")
	return cmd
}

func runQuery(ctx context.Context, out io.Writer, opts *queryOptions) error {
	switch opts.output {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q", opts.output)
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := newApp(cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx = client.WithAuthToken(ctx, opts.token)

	var verdict *health.Verdict
	if opts.upgrade {
		verdict, err = a.evaluator.EvaluateUpgrade(ctx, opts.force)
	} else {
		verdict, err = a.evaluator.Evaluate(ctx, opts.force)
	}
	if err != nil {
		return err
	}

	if err := writeVerdict(out, verdict, opts.output); err != nil {
		return err
	}
	if !verdict.Healthy {
		return errUnhealthy
	}
	return nil
}

func writeVerdict(out io.Writer, verdict *health.Verdict, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(verdict)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(verdict); err != nil {
			return err
		}
		return enc.Close()
	default:
		_, err := io.WriteString(out, verdict.Report)
		return err
	}
}

func exitCode(err error) int {
	if errors.Is(err, errUnhealthy) {
		return 1
	}
	return 2
}
