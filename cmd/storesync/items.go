package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	syncerr "github.com/vango-dev/storesync/internal/errors"
	"github.com/vango-dev/storesync/pkg/storage"
)

func getCmd(a *app) *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the record stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withArea(cmd.Context(), scope, func(ctx context.Context, area storage.Area) error {
				value, ok, err := area.GetItem(ctx, args[0])
				if err != nil {
					return syncerr.New("S104").WithKey(args[0]).WithScope(scope).Wrap(err)
				}
				if !ok {
					return syncerr.New("S221").WithKey(args[0]).WithScope(scope)
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			})
		},
	}
	scopeFlag(cmd, &scope)
	return cmd
}

func setCmd(a *app) *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "set <key> <json>",
		Short: "Store a JSON value under a key",
		Long: `Store a JSON value under a key.

Cells attached to the key adopt the value on their next frame, or at once
when --bridge points at the hub their process is connected to.

Examples:
  storesync set theme '"dark"'
  storesync set count 3 --scope session
  storesync set prefs '{"compact":true}' --bridge ws://localhost:7070/ws`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if !json.Valid([]byte(value)) {
				return syncerr.New("S220").WithKey(key).WithDetail(fmt.Sprintf("%q is not JSON text.", value))
			}
			return a.withArea(cmd.Context(), scope, func(ctx context.Context, area storage.Area) error {
				if err := area.SetItem(ctx, key, value); err != nil {
					return syncerr.New("S104").WithKey(key).WithScope(scope).Wrap(err)
				}
				return nil
			})
		},
	}
	scopeFlag(cmd, &scope)
	return cmd
}

func rmCmd(a *app) *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:     "rm <key>",
		Aliases: []string{"remove", "delete"},
		Short:   "Remove the record stored under a key",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withArea(cmd.Context(), scope, func(ctx context.Context, area storage.Area) error {
				if err := area.RemoveItem(ctx, args[0]); err != nil {
					return syncerr.New("S104").WithKey(args[0]).WithScope(scope).Wrap(err)
				}
				return nil
			})
		},
	}
	scopeFlag(cmd, &scope)
	return cmd
}

func keysCmd(a *app) *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List the keys in an area",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withArea(cmd.Context(), scope, func(ctx context.Context, area storage.Area) error {
				lister, ok := area.(storage.Lister)
				if !ok {
					return syncerr.New("S222").WithScope(scope).WithDetail(fmt.Sprintf("%T cannot list keys.", area))
				}
				keys, err := lister.Keys(ctx)
				if err != nil {
					return syncerr.New("S104").WithScope(scope).Wrap(err)
				}
				for _, k := range keys {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}
				return nil
			})
		},
	}
	scopeFlag(cmd, &scope)
	return cmd
}

// withArea opens the area for the named scope, runs fn within the
// configured timeout and closes the area.
func (a *app) withArea(ctx context.Context, scopeName string, fn func(context.Context, storage.Area) error) error {
	scope, err := storage.ParseScope(scopeName)
	if err != nil {
		return syncerr.New("S202").WithDetail(err.Error())
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout())
	defer cancel()

	area, release, err := a.openArea(ctx, scope)
	if err != nil {
		return err
	}
	defer release()

	return fn(storage.WithOrigin(ctx, cliOrigin), area)
}
