package main

import (
	"github.com/spf13/cobra"

	"github.com/FBalzerMPE/vw-explorer/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the results database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRawStore(func(st *store.Store) error {
			if err := st.MigrateUp(); err != nil {
				return err
			}
			cmd.Println("schema is up to date")
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRawStore(func(st *store.Store) error {
			if err := st.MigrateDown(); err != nil {
				return err
			}
			cmd.Println("rolled back one migration")
			return nil
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withRawStore(func(st *store.Store) error {
			v, dirty, err := st.MigrateVersion()
			if err != nil {
				return err
			}
			if dirty {
				cmd.Printf("schema version %d (dirty)\n", v)
			} else {
				cmd.Printf("schema version %d\n", v)
			}
			return nil
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}

// withRawStore opens the database without auto-migrating, so "down" and
// "version" observe the schema as it is.
func withRawStore(fn func(*store.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := store.OpenRaw(cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}
