package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Rana718/petquest/internal/config"
	"github.com/Rana718/petquest/internal/database"
	"github.com/Rana718/petquest/internal/logging"
	"github.com/Rana718/petquest/internal/schema"
)

var (
	cfgFile string
	Version = "0.3.0"
)

func showBanner() {
	green := color.New(color.FgGreen, color.Bold)

	banner := []string{
		"╔══════════════════════════════════════════════════╗",
		"║   ____      _    ___                  _          ║",
		"║  |  _ \\ ___| |_ / _ \\ _   _  ___  ___| |_        ║",
		"║  | |_) / _ \\ __| | | | | | |/ _ \\/ __| __|       ║",
		"║  |  __/  __/ |_| |_| | |_| |  __/\\__ \\ |_        ║",
		"║  |_|   \\___|\\__|\\__\\_\\\\__,_|\\___||___/\\__|       ║",
		"║                                                  ║",
		"║        Admin console for the PetQuest store      ║",
		"╚══════════════════════════════════════════════════╝",
	}
	for _, line := range banner {
		green.Println(line)
	}

	fmt.Print("                ")
	color.New(color.FgCyan, color.Bold).Print("Version: ")
	color.New(color.FgYellow, color.Bold).Printf("%s\n", Version)
}

var rootCmd = &cobra.Command{
	Use:   "petquest",
	Short: "Schema-driven admin console and game API for PetQuest",
	Long: `
PetQuest serves the owner-only admin console and the player game API on top
of one relational store.

Every administrable table is described by a JSON Schema style descriptor.
The same descriptors create the tables (migrate), drive the dashboard forms
and validate every write.

Database Support:
- SQLite (default, embedded)
- PostgreSQL
- MySQL`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		showVersion, _ := cmd.Flags().GetBool("version")
		if showVersion {
			fmt.Printf("PetQuest version %s\n", Version)
			return
		}
		showBanner()
		fmt.Println()
		cmd.Help()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./petquest.config.json)")
	rootCmd.PersistentFlags().String("db", "", "Database URL (overrides config/env)")
	rootCmd.Flags().BoolP("version", "v", false, "Show CLI version")
}

func initConfig() {
	if err := godotenv.Load(); err != nil {
		godotenv.Load(".env.local")
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("json")
		viper.SetConfigName("petquest.config")
	}

	viper.SetEnvPrefix("PETQUEST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// A missing config file is fine; defaults cover every setting.
	viper.ReadInConfig()
}

// loadConfig reads and validates the configuration. A --db flag replaces
// the URL held in the configured environment variable.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if dbURL, _ := cmd.Flags().GetString("db"); dbURL != "" {
		os.Setenv(cfg.Database.URLEnv, dbURL)
	}
	return cfg, nil
}

// environment is what every command that touches storage needs.
type environment struct {
	cfg      *config.Config
	logger   *zap.Logger
	adapter  database.DatabaseAdapter
	registry *schema.Registry
}

func (e *environment) Close() {
	e.adapter.Close()
	e.logger.Sync()
}

func openEnvironment(ctx context.Context, cmd *cobra.Command) (*environment, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	dbURL, err := cfg.GetDatabaseURL()
	if err != nil {
		return nil, err
	}
	adapter, err := database.NewAdapter(cfg.Database.Provider)
	if err != nil {
		return nil, err
	}
	if err := adapter.Connect(ctx, dbURL); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &environment{
		cfg:      cfg,
		logger:   logger,
		adapter:  adapter,
		registry: schema.NewRegistry(adapter, logger, schema.Sources(cfg.Schema.Dir)...),
	}, nil
}

func maskDBURL(url string) string {
	if len(url) < 20 {
		return "***"
	}
	return url[:10] + "***" + url[len(url)-10:]
}
