package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var Version = "dev"

type rootFlags struct {
	configPath string
	verbose    bool
	logFormat  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:           "opcal",
		Short:         "Mirror OpenProject work packages into a Google Calendar",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(flags)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Path to the config file (default ~/.config/opcal/config.toml)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&flags.logFormat, "log-format", "text", "Log format (text, json)")

	rootCmd.AddCommand(syncCmd(flags))
	rootCmd.AddCommand(planCmd(flags))
	rootCmd.AddCommand(authCmd(flags))
	rootCmd.AddCommand(projectsCmd(flags))
	rootCmd.AddCommand(configCmd(flags))

	return rootCmd
}

func setupLogging(flags *rootFlags) error {
	switch flags.logFormat {
	case "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", flags.logFormat)
	}
	log.SetOutput(os.Stderr)
	if flags.verbose {
		log.SetLevel(log.DebugLevel)
	}
	return nil
}
