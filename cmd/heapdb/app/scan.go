package app

import (
	"fmt"

	"github.com/go-faster/jx"
	"github.com/spf13/cobra"

	"github.com/Blackdeer1524/HeapDB/src/database"
	"github.com/Blackdeer1524/HeapDB/src/pkg/common"
)

func initScan() {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scan <table>",
		Short: "Prints every row of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			return withDatabase(func(db *database.Database) error {
				return inTransaction(db, func(txnID common.TxnID) error {
					var e jx.Encoder
					for t, err := range db.Scan(txnID, args[0]) {
						if err != nil {
							return err
						}

						if !asJSON {
							_, _ = fmt.Fprintln(out, t)
							continue
						}

						e.Reset()
						t.EncodeJSON(&e)
						_, _ = fmt.Fprintln(out, string(e.Bytes()))
					}
					return nil
				})
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print rows as JSON objects, one per line")

	rootCmd.AddCommand(cmd)
}
