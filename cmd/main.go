package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "hrtool",
	Short: "Maintenance tooling for the HR application's data store",
	Long: `hrtool probes, tests and seeds the collections behind the HR application.

Credentials are read from the environment (or a .env file), never from the
config file:
  HRTOOL_DATABASE_URL   Postgres DSN
  HRTOOL_BACKEND_KEY    API key of the hosted REST backend
  HRTOOL_JWT_SECRET     signing secret for API tokens`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(smokeCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
}

// @title HR Toolkit Maintenance API
// @version 1.0
// @description Schema discovery, CRUD smoke tests and seed loading for the HR data store
// @host localhost:8080
// @BasePath /
// @schemes http

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
