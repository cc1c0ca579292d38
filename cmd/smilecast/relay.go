package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/smilecast/internal/server"
	"github.com/ayusman/smilecast/internal/store"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run a websocket relay that receives smile notifications",
	Long: `Run a websocket endpoint the notifier can publish to. Messages sent to
/ or /publish are forwarded to every viewer connected on /ws. The status
API serves recorded events when a database is available.`,
	Args: cobra.NoArgs,
	RunE: runRelay,
}

func init() {
	rootCmd.AddCommand(relayCmd)
	relayCmd.Flags().String("addr", ":12345", "listen address")
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Close()

	addr := mustGetString(cmd, "addr")

	var st *store.Store
	if cfg.Store.Path != "" {
		st, err = store.New(cfg.Store.Path)
		if err != nil {
			log.Warn().Err(err).Msg("event history unavailable")
			st = nil
		} else {
			defer st.Close()
		}
	}

	hub := server.NewHub(log.Logger)
	srv := server.New(server.Config{Hub: hub, Store: st}, log.Logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-cmd.Context().Done():
	}

	log.Info().Msg("shutting down relay")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
