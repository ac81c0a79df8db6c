package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/anoixa/asset-store/config"
	"github.com/anoixa/asset-store/database"
)

// migrateCmd 数据库迁移命令
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Run auto migration for the configured database.

Examples:
  # SQLite (default)
  asset-store migrate

  # PostgreSQL
  DB_TYPE=postgres DB_HOST=localhost DB_USERNAME=postgres DB_NAME=assets asset-store migrate`,
	Run: func(cmd *cobra.Command, args []string) {
		config.InitConfig()

		factory, err := database.NewFactory(config.Get())
		if err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		defer factory.Close()

		if err := factory.AutoMigrate(); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
