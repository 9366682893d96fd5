package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Rana718/petquest/internal/gateway"
)

var exportCmd = &cobra.Command{
	Use:   "export <table>",
	Short: "Export a table to CSV",
	Long: `
Write every row of a table to <export_path>/<table>.csv, the same file the
dashboard's Export button downloads. Markup in rich text columns is stripped.

Examples:
  petquest export quests
  petquest export pets --sort level:desc`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		env, err := openEnvironment(ctx, cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.cfg.EnsureDirectories(); err != nil {
			return fmt.Errorf("failed to create directories: %w", err)
		}

		table := args[0]
		sortSpec, _ := cmd.Flags().GetString("sort")
		g := gateway.New(env.adapter, env.registry, gateway.WithLogger(env.logger))
		data, err := g.Export(ctx, table, gateway.ParseSort(sortSpec))
		if err != nil {
			return err
		}
		if string(data) == gateway.NoData {
			color.Yellow("⚠️  %s has no rows, nothing exported", table)
			return nil
		}

		path := filepath.Join(env.cfg.ExportPath, table+".csv")
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		color.Green("✅ Exported %s to %s", table, path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().String("sort", "", "Sort as column:asc or column:desc")
}
