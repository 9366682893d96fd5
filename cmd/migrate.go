package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Rana718/petquest/internal/migrator"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create a table for every descriptor",
	Long: `
Create one table per descriptor that has not been migrated yet. Tables that
already exist are adopted: they are recorded as migrated and left untouched.

Each applied migration is recorded in the _petquest_migrations table, so
running migrate again only picks up new descriptors.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		env, err := openEnvironment(ctx, cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := migrator.New(env.adapter, env.registry, env.logger).Apply(ctx)
		if err != nil {
			return err
		}

		if len(result.Applied) == 0 && len(result.Adopted) == 0 {
			color.Green("✅ Database is up to date")
			return nil
		}
		for _, table := range result.Applied {
			fmt.Printf("  %s created %s\n", color.GreenString("+"), table)
		}
		for _, table := range result.Adopted {
			fmt.Printf("  %s adopted %s\n", color.YellowString("~"), table)
		}
		color.Green("✅ Applied %d migration(s), adopted %d table(s)", len(result.Applied), len(result.Adopted))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
