package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/roamline/roamline/internal/config"
	"github.com/roamline/roamline/internal/gateway"
	"github.com/roamline/roamline/internal/hooks"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the planning assistant server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return err
			}

			st, err := buildStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			sv, err := buildSupervisor(cfg, st)
			if err != nil {
				return err
			}

			hookMgr := hooks.NewManager(log)
			hookMgr.On(hooks.EventPlanFinalized, "finalize-log", func(ctx context.Context, p hooks.Payload) error {
				log.Info().Interface("data", p.Data).Msg("trip plan finalized")
				return nil
			})
			sv.AttachHooks(hookMgr)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			hookMgr.Emit(ctx, hooks.EventServerStart, nil)
			defer hookMgr.Emit(context.Background(), hooks.EventServerStop, nil)

			return gateway.New(cfg, sv, st, log).Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override the server port")
	cmd.Flags().StringVar(&bind, "bind", "", "override the bind mode (loopback, lan, custom)")
	return cmd
}
