package app

import (
	"context"

	"github.com/Blackdeer1524/HeapDB/src/cli"
)

var rootCmd = cli.Init("heapdb")

func MustExecute(ctx context.Context) {
	initScan()
	initInsert()
	initStats()
	initLog()
	initStress()
	rootCmd.MustExecute(ctx)
}
