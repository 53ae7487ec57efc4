package main

import (
	"context"
	"fmt"

	"clusterkit/adapters/db"
	"clusterkit/adapters/excel"
	"clusterkit/domain/core"
	"clusterkit/internal/config"
	"clusterkit/internal/errors"
	"clusterkit/ports"

	"github.com/spf13/cobra"
)

// openStore returns the configured data store and a function releasing it.
// With no driver configured it returns a nil store.
func (e *env) openStore(ctx context.Context) (ports.DataStore, func(), error) {
	noop := func() {}
	switch e.cfg.Store.Driver {
	case config.StoreNone:
		return nil, noop, nil
	case config.StoreExcel:
		return excel.NewStore(e.cfg.Store.DSN, e.logger), noop, nil
	case config.StorePostgres, config.StoreSQLite:
		conn, err := db.Open(e.cfg.Store.Driver, e.cfg.Store.DSN)
		if err != nil {
			return nil, noop, err
		}
		store := db.NewStore(conn, e.logger)
		if err := store.Migrate(ctx); err != nil {
			conn.Close()
			return nil, noop, err
		}
		return store, func() { conn.Close() }, nil
	}
	return nil, noop, errors.ConfigInvalid("unsupported STORE_DRIVER " + e.cfg.Store.Driver)
}

// requireStore is openStore for commands that cannot work without a store.
func (e *env) requireStore(ctx context.Context, command string) (ports.DataStore, func(), error) {
	store, closeStore, err := e.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, errors.ConfigInvalid(command + " needs STORE_DRIVER and STORE_DSN")
	}
	return store, closeStore, nil
}

func newListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := e.requireStore(cmd.Context(), "list")
			if err != nil {
				return err
			}
			defer closeStore()

			names, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func newDeleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [name]",
		Short: "Remove a stored container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := core.ParseDatasetName(args[0])
			if err != nil {
				return err
			}
			store, closeStore, err := e.requireStore(cmd.Context(), "delete")
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.Delete(cmd.Context(), name); err != nil {
				return err
			}
			e.logger.Info("deleted %s", name)
			return nil
		},
	}
}
