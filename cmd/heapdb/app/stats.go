package app

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Blackdeer1524/HeapDB/src/database"
	"github.com/Blackdeer1524/HeapDB/src/pkg/common"
)

func initStats() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Scans every table and prints sizes, redo log usage and buffer pool counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(func(db *database.Database) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(w, "TABLE\tROWS\tPAGES\tSIZE\tSCHEMA")

				err := inTransaction(db, func(txnID common.TxnID) error {
					for _, name := range db.Catalog().TableNames() {
						f, err := db.Table(name)
						if err != nil {
							return err
						}

						rows := 0
						for _, err := range db.Scan(txnID, name) {
							if err != nil {
								return err
							}
							rows++
						}

						pages, err := f.NumPages()
						if err != nil {
							return err
						}

						_, _ = fmt.Fprintf(
							w,
							"%s\t%s\t%s\t%s\t%s\n",
							name,
							humanize.Comma(int64(rows)),
							humanize.Comma(int64(pages)),
							humanize.Bytes(uint64(pages)*uint64(common.PageSize())), //nolint:gosec
							f.TupleDesc(),
						)
					}
					return nil
				})
				if err != nil {
					return err
				}
				if err := w.Flush(); err != nil {
					return err
				}

				log := db.LogFile()
				_, _ = fmt.Fprintf(
					cmd.OutOrStdout(),
					"\nredo log: %s, %s records, pool capacity %d pages\n",
					humanize.Bytes(uint64(log.Size())), //nolint:gosec
					humanize.Comma(int64(log.LastLSN())), //nolint:gosec
					db.BufferPool().Capacity(),
				)

				stats, err := db.PoolStats(cmd.Context())
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(
					cmd.OutOrStdout(),
					"pool: %s hits, %s misses, %s evictions, %s lock timeouts\n",
					humanize.Comma(stats.Hits),
					humanize.Comma(stats.Misses),
					humanize.Comma(stats.Evictions),
					humanize.Comma(stats.Aborts),
				)
				return nil
			})
		},
	})
}
