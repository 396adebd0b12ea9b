package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pelusa-v/pelusa-live/internal/api"
	"github.com/pelusa-v/pelusa-live/internal/session"
)

var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Send one presence heartbeat and exit",
	RunE:  runHeartbeat,
}

func runHeartbeat(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	sess, err := session.FromToken(cfg.Token)
	if err != nil {
		return fmt.Errorf("PELUSA_TOKEN: %w", err)
	}
	client := api.NewClient(cfg.APIBaseURL(), session.NewStatic(sess),
		api.WithLogger(log), api.WithTimeout(cfg.ActivitySettings().RequestTimeout))
	if err := client.Heartbeat(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "heartbeat delivered for %s\n", sess.User.ID)
	return nil
}
