package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stsysd/koyomi/config"
	"github.com/stsysd/koyomi/db"
	"github.com/stsysd/koyomi/store"
)

// newMigrateCommand はスキーマのマイグレーションを操作するコマンドを作成します。
func newMigrateCommand() *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default: $KOYOMI_DATA_DIR or ./data)")

	// withDB はデータディレクトリのデータベースを開いて fn に渡します。
	withDB := func(fn func(conn *sql.DB) error) error {
		if dataDir == "" {
			cfg, err := config.NewConfig()
			if err != nil {
				return err
			}
			dataDir = cfg.DataDir
		}
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		conn, err := store.Open(dataDir)
		if err != nil {
			return err
		}
		defer conn.Close()
		return fn(conn)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(func(conn *sql.DB) error {
					if err := db.Migrate(conn); err != nil {
						return err
					}
					return printVersion(cmd, conn)
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(func(conn *sql.DB) error {
					if err := db.Rollback(conn); err != nil {
						return err
					}
					return printVersion(cmd, conn)
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(func(conn *sql.DB) error {
					return printVersion(cmd, conn)
				})
			},
		},
	)
	return cmd
}

func printVersion(cmd *cobra.Command, conn *sql.DB) error {
	v, err := db.Version(conn)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", v)
	return nil
}
