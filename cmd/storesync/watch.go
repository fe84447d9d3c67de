package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/storesync/internal/config"
	syncerr "github.com/vango-dev/storesync/internal/errors"
	"github.com/vango-dev/storesync/pkg/bridge"
	"github.com/vango-dev/storesync/pkg/cell"
	"github.com/vango-dev/storesync/pkg/codec"
	"github.com/vango-dev/storesync/pkg/frame"
	"github.com/vango-dev/storesync/pkg/reactive"
	"github.com/vango-dev/storesync/pkg/storage"
)

func watchCmd(a *app) *cobra.Command {
	var (
		scope   string
		initial string
	)

	cmd := &cobra.Command{
		Use:   "watch <key>",
		Short: "Attach a cell to a key and print every value it holds",
		Long: `Attach a cell to a key and print every value it holds until interrupted.

The cell behaves exactly like one embedded in an application: it adopts
the stored record, reverts to --initial on corrupt or mismatched records,
and polls the area once per frame (fps in the config).

Examples:
  storesync watch theme --initial '"light"'
  storesync watch count --initial 0 --bridge ws://localhost:7070/ws`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initialValue, err := codec.Decode(initial)
			if err != nil {
				return syncerr.New("S220").WithKey(args[0]).WithDetail("--initial must be JSON text.").Wrap(err)
			}
			sc, err := storage.ParseScope(scope)
			if err != nil {
				return syncerr.New("S202").WithDetail(err.Error())
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.watch(ctx, cmd.OutOrStdout(), args[0], initialValue, sc)
		},
	}

	scopeFlag(cmd, &scope)
	cmd.Flags().StringVarP(&initial, "initial", "i", "null", "Initial value as JSON text")

	return cmd
}

func (a *app) watch(ctx context.Context, out io.Writer, key string, initial any, scope storage.Scope) error {
	persistent, err := config.OpenArea(ctx, a.cfg.Area)
	if err != nil {
		return err
	}
	defer persistent.Close()

	session, err := config.OpenArea(ctx, a.cfg.Session)
	if err != nil {
		return err
	}
	defer session.Close()

	loop := frame.NewLoop(frame.LoopConfig{FPS: a.cfg.FPS})
	defer loop.Close()

	hostCfg := cell.HostConfig{
		Persistent: persistent,
		Session:    session,
		Frames:     loop,
		Logger:     a.logger,
		OpTimeout:  a.cfg.Timeout(),
	}

	if a.bridgeURL != "" {
		client, err := bridge.Dial(ctx, a.bridgeURL, bridge.WithLogger(a.logger))
		if err != nil {
			return fmt.Errorf("connect to bridge: %w", err)
		}
		defer client.Close()
		hostCfg.Persistent = client.Wrap(persistent, storage.Persistent)
		hostCfg.Session = client.Wrap(session, storage.Session)
	}

	host := cell.NewHost(hostCfg)
	defer host.Close()

	c, _ := cell.Attach(host, key, initial, cell.WithScope(scope))
	defer c.Detach()

	printValue(out, c.Peek())
	w := reactive.Watch(c.Signal(), func(v any) {
		printValue(out, v)
	})
	defer w.Stop()

	<-ctx.Done()
	return nil
}

func printValue(out io.Writer, v any) {
	text, err := codec.Encode(v)
	if err != nil {
		text = fmt.Sprintf("%v", v)
	}
	fmt.Fprintln(out, text)
}
