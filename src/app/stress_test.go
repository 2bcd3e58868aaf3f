package app

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/HeapDB/src/cfg"
	"github.com/Blackdeer1524/HeapDB/src/database"
	"github.com/Blackdeer1524/HeapDB/src/storage/catalog"
)

const schemaPath = "/db/schema.txt"

func stressConfig() cfg.Config {
	c := cfg.Default()
	c.DataDir = "/db"
	c.LockTimeoutMin = 100 * time.Millisecond
	c.LockTimeoutMax = 300 * time.Millisecond
	return c
}

func stressFs(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, schemaPath, []byte("t (a int, b string)\n"), 0o644))
	return fs
}

func TestStressCommitsEveryTransaction(t *testing.T) {
	fs := stressFs(t)
	var out bytes.Buffer

	e := &StressEntrypoint{
		Config:     stressConfig(),
		Fs:         fs,
		SchemaPath: schemaPath,
		Table:      "t",
		Txns:       30,
		Workers:    4,
		MaxRetries: 50,
		Out:        &out,
		Log:        zap.NewNop().Sugar(),
	}
	require.NoError(t, Run(context.Background(), e))
	assert.Contains(t, out.String(), "committed=30")
	assert.Contains(t, out.String(), "failed=0")

	db, err := database.Open(stressConfig(), fs, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer db.Close()
	_, err = db.LoadSchema(schemaPath)
	require.NoError(t, err)

	n := 0
	for _, err := range db.Scan(db.Begin(), "t") {
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 30, n)
}

func TestStressInitErrors(t *testing.T) {
	e := &StressEntrypoint{
		Config:     stressConfig(),
		Fs:         stressFs(t),
		SchemaPath: schemaPath,
		Table:      "missing",
		Txns:       1,
		Workers:    1,
		Log:        zap.NewNop().Sugar(),
	}
	err := Run(context.Background(), e)
	require.ErrorIs(t, err, catalog.ErrTableNotFound)
	require.NoError(t, e.Close())

	bad := &StressEntrypoint{Config: stressConfig(), Fs: stressFs(t), Table: "t"}
	require.Error(t, Run(context.Background(), bad))
}
