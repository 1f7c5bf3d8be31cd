package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/idilsaglam/itemsync/internal/dashboard"
	"github.com/idilsaglam/itemsync/internal/logging"
	"github.com/idilsaglam/itemsync/internal/tui"
)

func (a *app) watchCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the item list every time it changes",
		Args:  checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			ctx := cmd.Context()
			sess, err := a.open(ctx, true)
			if err != nil {
				return err
			}
			defer sess.Close()

			readyCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
			err = sess.waitReady(readyCtx)
			cancel()
			if err != nil {
				return err
			}

			updates, stop := sess.syncer.Observe()
			defer stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case err := <-sess.subErr:
					logging.NewLogger("cli").WithError(err).Warn("subscription failed; keeping last snapshot")
				case items, ok := <-updates:
					if !ok {
						return nil
					}
					if err := a.render(format, items); err != nil {
						return err
					}
				}
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table, json or yaml")
	return cmd
}

func (a *app) tuiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Browse and edit items interactively",
		Args:  checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := a.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer sess.Close()
			return tui.Run(sess.syncer, a.cfg.Collection)
		},
	}
}

func (a *app) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the live item list over WebSocket",
		Long: `Start a WebSocket dashboard that pushes the item list to every client.

Clients receive {"type":"snapshot","items":[...]} on connect and after every
change, and may send:
  {"op":"add","title":"...","description":"..."}
  {"op":"delete","id":"..."}
  {"op":"update","item":{"id":"...","title":"...","description":"..."}}`,
		Args: checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := a.open(ctx, true)
			if err != nil {
				return err
			}
			defer sess.Close()

			srv := dashboard.NewServer(sess.syncer, dashboard.Config{Addr: a.cfg.Serve.Addr})
			if err := srv.Start(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Dashboard listening on http://%s\n", srv.Addr())
			fmt.Fprintf(a.out, "WebSocket endpoint: ws://%s/ws\n", srv.Addr())
			fmt.Fprintln(a.out, "Press Ctrl+C to stop...")

			<-ctx.Done()
			return srv.Stop()
		},
	}
	cmd.Flags().String("addr", "", "address to listen on (default :8080)")
	return cmd
}
