package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/gif-processor/internal/config"
)

// Setup initializes the global zlog logger and applies the configured
// level and output format. Unknown levels fall back to info.
func Setup(cfg config.Log) {
	zlog.Init()

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if strings.EqualFold(cfg.Format, "plain") {
		zlog.Logger = zlog.Logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	zerolog.DefaultContextLogger = &zlog.Logger
}
