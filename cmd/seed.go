package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Rana718/petquest/internal/gateway"
	"github.com/Rana718/petquest/internal/seeder"
)

var seedCmd = &cobra.Command{
	Use:   "seed [table[:count]...]",
	Short: "Fill tables with generated demo rows",
	Long: `
Insert generated rows through the same validation the dashboard uses.
Tables are filled so that referencing columns (pet_id, owner_user_id, ...)
point at rows created earlier in the run.

Examples:
  petquest seed
  petquest seed --count 20
  petquest seed users:5 pets:10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		seed, _ := cmd.Flags().GetInt64("seed")
		tables, err := parseSeedTables(args, count)
		if err != nil {
			return err
		}

		ctx := context.Background()
		env, err := openEnvironment(ctx, cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		color.Cyan("🌱 Starting database seeding...")
		g := gateway.New(env.adapter, env.registry, gateway.WithLogger(env.logger))
		result, err := seeder.New(g, env.registry, env.logger).Seed(ctx, seeder.SeedConfig{
			Count:  count,
			Tables: tables,
			Seed:   seed,
		})
		if result != nil && len(result.Order) > 0 {
			color.Cyan("📋 Insertion order: %s", strings.Join(result.Order, " → "))
			for _, t := range result.Order {
				fmt.Printf("  %s %s: %d rows\n", color.GreenString("+"), t, result.Created[t])
			}
		}
		if err != nil {
			return err
		}
		color.Green("✅ Database seeding completed successfully!")
		return nil
	},
}

func parseSeedTables(args []string, count int) (map[string]int, error) {
	if len(args) == 0 {
		return nil, nil
	}
	tables := make(map[string]int, len(args))
	for _, arg := range args {
		name, n, found := strings.Cut(arg, ":")
		if !found {
			tables[name] = count
			continue
		}
		v, err := strconv.Atoi(n)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("invalid count for %s: %q", name, n)
		}
		tables[name] = v
	}
	return tables, nil
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().IntP("count", "c", 10, "Rows per table")
	seedCmd.Flags().Int64("seed", 0, "Random seed (default: clock)")
}
