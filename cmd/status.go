package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Rana718/petquest/internal/migrator"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	Long: `Show the current status of every descriptor migration including:
- Total number of migrations
- Number of applied migrations
- Number of pending migrations
- Each migration with its status and timestamp`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		env, err := openEnvironment(ctx, cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		status, err := migrator.New(env.adapter, env.registry, env.logger).Status(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Migrations: %d total, %d applied, %d pending\n\n",
			status.TotalMigrations, status.AppliedMigrations, status.PendingMigrations)
		for _, item := range status.Items {
			if item.AppliedAt != nil {
				fmt.Printf("  %s %-40s %s\n", color.GreenString("applied"), item.ID, item.AppliedAt.Format("2006-01-02 15:04:05"))
				continue
			}
			fmt.Printf("  %s %s\n", color.YellowString("pending"), item.ID)
		}
		if status.PendingMigrations > 0 {
			fmt.Println()
			color.Yellow("Run 'petquest migrate' to apply pending migrations")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
