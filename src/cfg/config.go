package cfg

import (
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "HEAPDB"

const (
	EnvDev  Environment = "dev"
	EnvProd Environment = "prod"

	DefaultEnv = EnvDev
)

type Environment string

func (e Environment) Validate() error {
	if e != EnvDev && e != EnvProd {
		return errors.Errorf("environment must be either dev or prod, got %q", e)
	}

	return nil
}

type Config struct {
	Environment Environment `default:"dev"`

	DataDir         string        `split_words:"true" default:"data"`
	LogFileName     string        `split_words:"true" default:"heapdb.log"`
	BufferPoolPages int           `split_words:"true" default:"50"`
	LockTimeoutMin  time.Duration `split_words:"true" default:"1s"`
	LockTimeoutMax  time.Duration `split_words:"true" default:"3s"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Environment:     DefaultEnv,
		DataDir:         "data",
		LogFileName:     "heapdb.log",
		BufferPoolPages: 50,
		LockTimeoutMin:  time.Second,
		LockTimeoutMax:  3 * time.Second,
	}
}

// Load reads HEAPDB_* variables. If path is set, the .env file there is
// loaded first and must exist; variables already present in the process
// environment win over the file.
func Load(path string) (Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return Config{}, errors.Wrapf(err, "load env file %s", path)
		}
	}

	var c Config
	if err := envconfig.Process(EnvPrefix, &c); err != nil {
		return Config{}, errors.Wrap(err, "process env vars")
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

func (c Config) Validate() error {
	if err := c.Environment.Validate(); err != nil {
		return errors.Wrap(err, "environment validation")
	}

	if c.DataDir == "" {
		return errors.New("data dir must be set")
	}

	if c.LogFileName == "" || filepath.Base(c.LogFileName) != c.LogFileName {
		return errors.Errorf("log file name must be a plain file name, got %q", c.LogFileName)
	}

	if c.BufferPoolPages <= 0 {
		return errors.Errorf("buffer pool pages must be positive, got %d", c.BufferPoolPages)
	}

	if c.LockTimeoutMin <= 0 || c.LockTimeoutMax < c.LockTimeoutMin {
		return errors.Errorf(
			"invalid lock timeout range [%v, %v)",
			c.LockTimeoutMin,
			c.LockTimeoutMax,
		)
	}

	return nil
}

func (c Config) LogFilePath() string {
	return filepath.Join(c.DataDir, c.LogFileName)
}
