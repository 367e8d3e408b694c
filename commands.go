package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/harrisonrobin/opcal/pkg/audit"
	"github.com/harrisonrobin/opcal/pkg/auth"
	"github.com/harrisonrobin/opcal/pkg/config"
	"github.com/harrisonrobin/opcal/pkg/google"
	"github.com/harrisonrobin/opcal/pkg/openproject"
	"github.com/harrisonrobin/opcal/pkg/reconcile"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func syncCmd(flags *rootFlags) *cobra.Command {
	var (
		every  time.Duration
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a synchronization pass (or one every --every)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := newSyncer(ctx, flags, dryRun)
			if err != nil {
				return err
			}
			if every > 0 {
				log.WithField("every", every).Info("starting periodic synchronization")
				return s.Loop(ctx, every)
			}
			out, err := s.Run(ctx)
			if err != nil {
				return err
			}
			printOutcome(cmd, out)
			if n := out.Failed(); n > 0 {
				return fmt.Errorf("%d calendar actions failed", n)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&every, "every", 0, "Repeat the pass at this interval until interrupted")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute the plan without touching the calendar")
	return cmd
}

func planCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show what a synchronization pass would do",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSyncer(cmd.Context(), flags, true)
			if err != nil {
				return err
			}
			out, err := s.Run(cmd.Context())
			if err != nil {
				return err
			}
			printOutcome(cmd, out)
			return nil
		},
	}
}

func authCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to Google Calendar and Sheets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			creds := credentials(cfg)
			if err := auth.Reauthorize(cmd.Context(), creds, google.Scopes); err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
			log.Infof("Authentication successful! Token saved to %s", creds.TokenFile)
			return nil
		},
	}
}

func projectsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List the OpenProject projects visible to the API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			if cfg.OpenProjectURL == "" || cfg.OpenProjectAPIKey == "" {
				return fmt.Errorf("%w: openproject_url and openproject_api_key are required", config.ErrIncomplete)
			}
			projects, err := openProjectClient(cfg).Projects(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range projects {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", p.ID, p.Identifier, p.Name)
			}
			return nil
		},
	}
}

func configCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Edit the config file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set-calendar <calendar>",
		Short: "Set the calendar id or name to synchronize into",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			cfg.CalendarID = args[0]
			if err := config.Save(flags.configPath, cfg); err != nil {
				return fmt.Errorf("error saving config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Default calendar set to: %s\n", args[0])
			return nil
		},
	})
	return cmd
}

// newSyncer wires the config, credentials and both remote systems into a syncer.
func newSyncer(ctx context.Context, flags *rootFlags, dryRun bool) (*reconcile.Syncer, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := reconcile.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	opts.DryRun = dryRun

	httpClient, err := auth.GetClient(ctx, credentials(cfg), google.Scopes)
	if err != nil {
		return nil, err
	}
	cal, err := google.NewClient(ctx, httpClient, cfg.CalendarID)
	if err != nil {
		return nil, err
	}
	log.WithField("calendar", cal.CalendarID()).Debug("resolved calendar")

	sink, err := auditSink(ctx, cfg, httpClient)
	if err != nil {
		return nil, err
	}

	src := &openproject.Source{Client: openProjectClient(cfg), Project: cfg.Project}
	return reconcile.NewSyncer(opts, src, cal, audit.NewRecorder(sink)), nil
}

// auditSink writes to the spreadsheet when one is configured and always keeps
// a local JSON lines copy.
func auditSink(ctx context.Context, cfg *config.Config, httpClient *http.Client) (audit.Sink, error) {
	path := cfg.AuditFile
	if path == "" {
		dir, err := config.Dir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "audit.jsonl")
	}
	sinks := audit.MultiSink{audit.NewFileSink(path)}

	if cfg.SheetID != "" {
		srv, err := google.NewSheetsService(ctx, httpClient)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, audit.NewSheetsSink(srv, cfg.SheetID))
	}
	return sinks, nil
}

func openProjectClient(cfg *config.Config) *openproject.Client {
	c := openproject.NewClient(cfg.OpenProjectURL, cfg.OpenProjectAPIKey, &http.Client{Timeout: 30 * time.Second})
	c.PageSize = cfg.PageSize
	return c
}

func credentials(cfg *config.Config) auth.Credentials {
	return auth.Credentials{File: cfg.CredentialsFile, TokenFile: cfg.TokenFile}
}

func printOutcome(cmd *cobra.Command, out *reconcile.Outcome) {
	w := cmd.OutOrStdout()
	mode := "applied"
	if out.DryRun {
		mode = "planned"
	}
	fmt.Fprintf(w, "pass %s (%s)\n", out.PassID, mode)
	fmt.Fprintf(w, "  to_create:  %s\n", joinIDs(out.Plan.ToCreate))
	fmt.Fprintf(w, "  to_delete:  %s\n", joinIDs(out.Plan.ToDelete))
	fmt.Fprintf(w, "  may_update: %s\n", joinIDs(out.Plan.MayUpdate))
	fmt.Fprintf(w, "  changed:    %s\n", joinIDs(out.Plan.Changed))
	for _, pe := range out.TaskErrors {
		fmt.Fprintf(w, "  task error: %v\n", pe.Err)
	}
	for _, pe := range out.EventErrors {
		fmt.Fprintf(w, "  event error: %v\n", pe.Err)
	}
	for _, c := range reconcile.Categories {
		for _, msg := range out.Errors(c) {
			fmt.Fprintf(w, "  %s failed: %s\n", c, msg)
		}
	}
}

func joinIDs(ids []int) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ",")
}
