package app

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	entry "github.com/Blackdeer1524/HeapDB/src/app"
)

func initStress() {
	var txns, workers, retries int

	cmd := &cobra.Command{
		Use:   "stress <table>",
		Short: "Runs concurrent inserting transactions against a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}

			fs := afero.NewOsFs()
			schema, err := schemaPath(fs, c)
			if err != nil {
				return err
			}

			return entry.Run(cmd.Context(), &entry.StressEntrypoint{
				Config:     c,
				Fs:         fs,
				SchemaPath: schema,
				Table:      args[0],
				Txns:       txns,
				Workers:    workers,
				MaxRetries: retries,
				Out:        cmd.OutOrStdout(),
			})
		},
	}
	cmd.Flags().IntVar(&txns, "txns", 1000, "number of transactions")
	cmd.Flags().IntVar(&workers, "workers", 8, "number of concurrent workers")
	cmd.Flags().IntVar(&retries, "retries", 10, "attempts per transaction before giving up")

	rootCmd.AddCommand(cmd)
}
