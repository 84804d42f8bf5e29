package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"contentagent/internal/app"
	"contentagent/internal/config"
	"contentagent/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "contentagent",
		Short:         "Content ingestion, curation, and generation pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newInitCmd(), newRunCmd(), newScheduleCmd(), newSearchCmd())
	return root
}

func buildApp() (*app.Application, error) {
	cfg := config.Load()
	return app.New(cfg, logging.New(cfg.Logging.Level))
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the data directory layout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			return application.Init()
		},
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <workflow>",
		Short: "Run a workflow once (content, issue-sync, metrics)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			result, err := application.RunWorkflow(ctx, args[0])
			if err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("workflow %s failed: %s", args[0], strings.Join(result.Errors, "; "))
			}

			fmt.Printf("workflow %s completed: %d items processed\n", args[0], result.ItemsProcessed)
			return nil
		},
	}
}

func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the content workflow on the configured cron schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return application.Schedule(ctx)
		},
	}
}

func newSearchCmd() *cobra.Command {
	var mode string
	var topK int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the inbox index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			results, err := application.Search(cmd.Context(), args[0], mode, topK)
			if err != nil {
				return err
			}

			if len(results) == 0 {
				fmt.Println("no matches")
				return nil
			}
			for i, r := range results {
				title := r.Record.Title
				if title == "" {
					title = firstLine(r.Record.Content)
				}
				fmt.Printf("%2d. [%.3f] %s (%s) %s\n", i+1, r.Score, title, r.Record.AuthorName, r.Record.URL)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "hybrid", "search mode: semantic, keyword, or hybrid")
	cmd.Flags().IntVar(&topK, "top", 0, "maximum results (0 uses the curation topK)")
	return cmd
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 80 {
		s = s[:80] + "…"
	}
	return s
}
