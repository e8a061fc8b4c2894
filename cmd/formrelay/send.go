package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/formrelay/formrelay/internal/config"
	"github.com/formrelay/formrelay/internal/distributor"
	"github.com/formrelay/formrelay/internal/observability"
	"github.com/formrelay/formrelay/internal/submission"
)

// submissionFile is the input of `formrelay send`, YAML or JSON.
type submissionFile struct {
	Data      *submission.Data  `yaml:"data"`
	Cookies   map[string]string `yaml:"cookies"`
	Variables map[string]string `yaml:"variables"`
}

func newSendCmd() *cobra.Command {
	var configPath string
	var submissionPath string
	var routeNames []string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Distribute a single submission read from a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return errors.New("config path is required")
			}
			if submissionPath == "" {
				return errors.New("submission path is required")
			}
			cfg, err := config.LoadValid(configPath)
			if err != nil {
				return err
			}
			routes, err := selectRoutes(cfg, routeNames)
			if err != nil {
				return err
			}
			input, err := readSubmission(submissionPath)
			if err != nil {
				return err
			}

			rt, err := newApp(cmd.Context(), cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.Close()

			d := distributor.New(cfg.Routes, distributor.Options{
				Registry:    rt.registry,
				Logger:      rt.logger,
				Tracer:      observability.Tracer(),
				Metrics:     rt.metrics,
				DispatchLog: rt.dispatchLog,
			})
			sub := submission.New(input.Data)
			inbound := submission.NewBagFrom(input.Cookies, input.Variables)
			report, distErr := d.DistributeRoutes(cmd.Context(), sub, inbound, routes)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			return distErr
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&submissionPath, "submission", "", "Path to submission file (YAML or JSON)")
	cmd.Flags().StringSliceVar(&routeNames, "route", nil, "Only run these routes (repeatable)")

	return cmd
}

// selectRoutes returns the enabled routes, or the named ones in declared order.
// Naming a disabled route runs it anyway.
func selectRoutes(cfg *config.Config, names []string) ([]config.Route, error) {
	if len(names) == 0 {
		var out []config.Route
		for _, r := range cfg.Routes {
			if r.IsEnabled() {
				out = append(out, r)
			}
		}
		return out, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := cfg.Route(name); !ok {
			return nil, fmt.Errorf("unknown route %q", name)
		}
		wanted[name] = true
	}
	var out []config.Route
	for _, r := range cfg.Routes {
		if wanted[r.Name] {
			out = append(out, r)
		}
	}
	return out, nil
}

func readSubmission(path string) (submissionFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return submissionFile{}, fmt.Errorf("read submission: %w", err)
	}
	var input submissionFile
	if err := yaml.Unmarshal(raw, &input); err != nil {
		return submissionFile{}, fmt.Errorf("parse submission: %w", err)
	}
	if input.Data == nil {
		input.Data = submission.NewData()
	}
	return input, nil
}
