package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/Rana718/petquest/internal/schema"
)

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "List administrable tables",
	Long: `
List the tables found in storage, the ones the dashboard shows. Engine and
migration tables are hidden.

Examples:
  petquest schemas
  petquest schemas show pets
  petquest schemas check`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		env, err := openEnvironment(ctx, cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		tables, err := env.registry.ListTables(ctx)
		if err != nil {
			return err
		}
		if len(tables) == 0 {
			color.Yellow("No tables found. Run 'petquest migrate' first.")
			return nil
		}
		for _, t := range tables {
			fmt.Println(t)
		}
		return nil
	},
}

var schemasShowCmd = &cobra.Command{
	Use:   "show <table>",
	Short: "Print the descriptor for a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		env, err := openEnvironment(ctx, cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		desc, err := env.registry.GetSchema(ctx, args[0])
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(desc, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var schemasCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Compare descriptors with the live tables",
	Long: `
Report descriptor fields with no matching column and columns no descriptor
declares. Tables without a descriptor are reported as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		env, err := openEnvironment(ctx, cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		tables, err := env.registry.ListTables(ctx)
		if err != nil {
			return err
		}

		problems := 0
		for _, table := range tables {
			desc, err := env.registry.GetSchema(ctx, table)
			if err != nil {
				var nf *schema.NotFoundError
				if errors.As(err, &nf) {
					fmt.Printf("  %s %s: no descriptor\n", color.RedString("✗"), table)
					problems++
					continue
				}
				return err
			}
			columns, err := env.adapter.GetTableColumns(ctx, table)
			if err != nil {
				return fmt.Errorf("failed to read columns of %s: %w", table, err)
			}

			report := schema.Drift(desc, columns)
			if report.Clean() {
				fmt.Printf("  %s %s\n", color.GreenString("✓"), table)
				continue
			}
			problems++
			fmt.Printf("  %s %s\n", color.RedString("✗"), table)
			if len(report.MissingColumns) > 0 {
				fmt.Printf("      missing columns: %s\n", strings.Join(report.MissingColumns, ", "))
			}
			if len(report.UndeclaredColumns) > 0 {
				fmt.Printf("      undeclared columns: %s\n", strings.Join(report.UndeclaredColumns, ", "))
			}
		}

		if problems > 0 {
			return fmt.Errorf("%d table(s) out of sync with their descriptors", problems)
		}
		color.Green("✅ All descriptors match storage")
		return nil
	},
}

func init() {
	schemasCmd.AddCommand(schemasShowCmd, schemasCheckCmd)
	rootCmd.AddCommand(schemasCmd)
}
