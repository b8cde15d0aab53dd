package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/notifyhub/tipcast/internal/app"
	"github.com/notifyhub/tipcast/internal/config"
	"github.com/notifyhub/tipcast/internal/db"
	"github.com/notifyhub/tipcast/internal/domain"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tipctl",
	Short: "Operate the tipcast recommendation queue",
	Long: `tipctl runs the same operations as the tipcast HTTP API directly
against the configured store and gateway. Configuration is read from the
environment, a .env file and CONFIG_FILE exactly like the server.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if dryRun {
			return os.Setenv("GATEWAY", config.GatewayLog)
		}
		return nil
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("tipctl version %s\nCommit: %s\n", Version, Commit))
	rootCmd.PersistentFlags().Bool("dry-run", false, "Log messages instead of delivering them")

	dispatchCmd.Flags().Int("max", 0, "Maximum batch size (0 uses MAX_BATCH_SIZE)")

	rootCmd.AddCommand(dispatchCmd)
	rootCmd.AddCommand(enqueueCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(migrateCmd)
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run the daily recommendation dispatch once",
	Long: `Run the daily personalized dispatch immediately: rank the pending
queue, send each subscriber their best matching tip and mark the batch sent.

Do not run this while another instance may be dispatching.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("max")
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			res, err := a.Dispatch.RunDaily(ctx, limit)
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <health-tip-id> <title> <category>",
	Short: "Queue a health tip for the next daily dispatch",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			c, err := a.Queue.Enqueue(ctx, domain.EnqueueRequest{
				HealthTipID: args[0],
				Title:       args[1],
				Category:    args[2],
			})
			if err != nil {
				return err
			}
			fmt.Printf("✓ Queued %s (priority %d) at %s\n", c.ID, c.Priority, c.QueuedAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		})
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List pending candidates in dispatch order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			pending, err := a.Queue.ListPending(ctx)
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Println("No pending recommendations")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tID\tPRIORITY\tCATEGORY\tQUEUED\tTITLE")
			for i, c := range pending {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\n",
					i+1, c.ID, c.Priority, c.Category, c.QueuedAt.Format("2006-01-02 15:04"), c.Title)
			}
			return w.Flush()
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.StoreDriver != config.StorePostgres {
			fmt.Printf("Store driver %q has no schema; nothing to migrate\n", cfg.StoreDriver)
			return nil
		}
		if err := db.Migrate(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
			return err
		}
		fmt.Println("✓ Migrations applied")
		return nil
	},
}

// withApp loads configuration, wires the application and runs fn with a
// context cancelled on SIGINT/SIGTERM.
func withApp(parent context.Context, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}()

	return fn(ctx, a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
