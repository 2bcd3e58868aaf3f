package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Blackdeer1524/HeapDB/src/database"
)

func initLog() {
	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Redo log tools",
	}

	logCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Prints every durable record of the redo log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(func(db *database.Database) error {
				for r, err := range db.LogFile().Records() {
					if err != nil {
						return err
					}
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), r)
				}
				return nil
			})
		},
	})

	rootCmd.AddCommand(logCmd)
}
