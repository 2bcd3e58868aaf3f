package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Blackdeer1524/HeapDB/src/database"
	"github.com/Blackdeer1524/HeapDB/src/pkg/common"
)

func initInsert() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "insert <table> <value>...",
		Short: "Inserts one row and commits",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(func(db *database.Database) error {
				return inTransaction(db, func(txnID common.TxnID) error {
					t, err := db.Insert(txnID, args[0], args[1:])
					if err != nil {
						return err
					}

					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "inserted %v\n", t.RecordID().Unwrap())
					return nil
				})
			})
		},
	})
}
