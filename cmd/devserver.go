package main

import (
	"context"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pelusa-v/pelusa-live/internal/devserver"
)

var devServerCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run a local realtime endpoint speaking the production protocol",
	RunE:  runDevServer,
}

func init() {
	devServerCmd.Flags().String("addr", "", "listen address (default from config)")
}

func runDevServer(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	addr := cfg.DevServer.Addr
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		addr = v
	}
	srv := devserver.New(devserver.Config{
		Secret:     cfg.DevServer.Secret,
		RateLimit:  cfg.DevServer.RateLimit,
		QueueLimit: cfg.DevServer.QueueLimit,
	}, devserver.WithLogger(log))

	go func() {
		if err := srv.Listen(addr); err != nil {
			log.Error("devserver stopped", zap.Error(err))
		}
	}()

	wait := gfshutdown.GracefulShutdown(context.Background(), shutdownTimeout, map[string]gfshutdown.Operation{
		"devserver": func(ctx context.Context) error { return srv.Shutdown() },
	})
	code := <-wait
	log.Info("devserver exited", zap.Int("code", code))
	if code != 0 {
		os.Exit(code)
	}
	return nil
}
