package app

import (
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/spf13/afero"

	"github.com/Blackdeer1524/HeapDB/src"
	"github.com/Blackdeer1524/HeapDB/src/cfg"
	"github.com/Blackdeer1524/HeapDB/src/database"
	"github.com/Blackdeer1524/HeapDB/src/pkg/common"
)

const defaultSchemaName = "schema.txt"

func loadConfig() (cfg.Config, error) {
	return cfg.Load(rootCmd.Options.ConfigPath)
}

// schemaPath returns the --schema flag or <data dir>/schema.txt if it
// exists.
func schemaPath(fs afero.Fs, c cfg.Config) (string, error) {
	if rootCmd.Options.SchemaPath != "" {
		return rootCmd.Options.SchemaPath, nil
	}

	path := filepath.Join(c.DataDir, defaultSchemaName)
	exists, err := afero.Exists(fs, path)
	if err != nil || !exists {
		return "", err
	}
	return path, nil
}

// withDatabase opens the database described by the flags, runs fn and
// closes everything.
func withDatabase(fn func(db *database.Database) error) (err error) {
	c, err := loadConfig()
	if err != nil {
		return err
	}

	fs := afero.NewOsFs()
	log := src.MustNewLogger(c.Environment)
	defer func() { _ = log.Sync() }()

	db, err := database.Open(c, fs, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	schema, err := schemaPath(fs, c)
	if err != nil {
		return err
	}
	if schema == "" {
		return errors.Errorf("no schema: pass --schema or create %s", filepath.Join(c.DataDir, defaultSchemaName))
	}
	if _, err := db.LoadSchema(schema); err != nil {
		return err
	}

	return fn(db)
}

// inTransaction commits on success and aborts otherwise.
func inTransaction(db *database.Database, fn func(txnID common.TxnID) error) error {
	txnID := db.Begin()
	if err := fn(txnID); err != nil {
		if abortErr := db.Abort(txnID); abortErr != nil {
			return errors.Wrapf(abortErr, "abort after %v", err)
		}
		return err
	}
	return db.Commit(txnID)
}
