package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	appintegration "github.com/tometh04/vibook-services-sub001/internal/application/integration"
	"github.com/tometh04/vibook-services-sub001/internal/bootstrap"
	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
	"github.com/tometh04/vibook-services-sub001/internal/infrastructure/config"
	"github.com/tometh04/vibook-services-sub001/internal/infrastructure/logger"
)

var errMissingTenant = errors.New("tenant ID required: pass --tenant or set board.seed_tenant_id")

type rootOptions struct {
	configPath string
	tenant     string
	logLevel   string
}

// session is an initialized App plus the resolved tenant
type session struct {
	app      *bootstrap.App
	tenantID uuid.UUID
	log      *zap.Logger
}

// withSession loads config, wires the App and runs fn under a signal-aware context
func withSession(opts *rootOptions, fn func(ctx context.Context, s *session) error) error {
	cfg, err := config.LoadFile(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "15:04:05",
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	tenant := opts.tenant
	if tenant == "" {
		tenant = cfg.Board.SeedTenantID
	}
	if tenant == "" {
		return errMissingTenant
	}
	tenantID, err := uuid.Parse(tenant)
	if err != nil || tenantID == uuid.Nil {
		return fmt.Errorf("invalid tenant ID %q", tenant)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			log.Warn("Error releasing resources", zap.Error(err))
		}
	}()
	if err := app.SeedTenant(ctx); err != nil {
		return err
	}

	return fn(ctx, &session{app: app, tenantID: tenantID, log: log})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printSummary prints the summary and turns an unsuccessful run into an error
func printSummary(summary *appintegration.RunSummary, err error) error {
	if summary != nil {
		if perr := printJSON(summary); perr != nil {
			return perr
		}
	}
	return err
}

func reconcileCmd(opts *rootOptions) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation of the tenant's board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runMode, err := integration.ParseRunMode(mode)
			if err != nil {
				return err
			}
			return withSession(opts, func(ctx context.Context, s *session) error {
				return printSummary(s.app.Operator.RunReconciliation(ctx, s.tenantID, runMode))
			})
		},
	}
	cmd.Flags().StringVarP(&mode, "mode", "m", "incremental", "Run mode: full or incremental")
	return cmd
}

func resetCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all board-sourced leads, clear the checkpoint and run a full reconciliation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("reset deletes every board-sourced lead of the tenant; rerun with --yes")
			}
			return withSession(opts, func(ctx context.Context, s *session) error {
				return printSummary(s.app.Operator.FullReset(ctx, s.tenantID))
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the destructive reset")
	return cmd
}

func syncCardCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-card <card-id>",
		Short: "Re-derive the lead of a single card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, func(ctx context.Context, s *session) error {
				outcome, err := s.app.Operator.SyncOneCard(ctx, s.tenantID, args[0])
				if err != nil {
					return err
				}
				return printJSON(outcome)
			})
		},
	}
}

func webhookCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Manage the board webhook of the tenant",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "register",
		Short: "Register the callback webhook, replacing any previous one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, func(ctx context.Context, s *session) error {
				hook, err := s.app.Operator.RegisterWebhook(ctx, s.tenantID)
				if err != nil {
					return err
				}
				return printJSON(hook)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List webhooks registered with the tenant's token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, func(ctx context.Context, s *session) error {
				hooks, err := s.app.Operator.ListWebhooks(ctx, s.tenantID)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tMODEL\tACTIVE\tCALLBACK")
				for _, h := range hooks {
					fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", h.ID, h.ModelID, h.Active, h.CallbackURL)
				}
				return w.Flush()
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Delete the tenant's registered webhook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(opts, func(ctx context.Context, s *session) error {
				if err := s.app.Operator.DeleteWebhook(ctx, s.tenantID); err != nil {
					return err
				}
				s.log.Info("Webhook deleted", zap.String("tenant_id", s.tenantID.String()))
				return nil
			})
		},
	})
	return cmd
}
