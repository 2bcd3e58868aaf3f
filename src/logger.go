package src

import (
	"go.uber.org/zap"

	"github.com/Blackdeer1524/HeapDB/src/cfg"
	"github.com/Blackdeer1524/HeapDB/src/pkg/utils"
)

type Logger = *zap.SugaredLogger

// MustNewLogger builds a development logger for dev and a production one
// otherwise.
func MustNewLogger(env cfg.Environment) Logger {
	if env == cfg.EnvDev {
		return utils.Must(zap.NewDevelopment()).Sugar()
	}
	return utils.Must(zap.NewProduction()).Sugar()
}
