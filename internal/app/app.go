package app

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	runtime "github.com/banzaicloud/logrus-runtime-formatter"
	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// App holds attributes for the inventory application
type App struct {
	// Sync waitgroup to wait for running go routines on termination.
	SyncWG *sync.WaitGroup
	// Inventory configuration.
	Config *Configuration
	// TermCh is the channel to terminate the app based on a signal
	TermCh chan os.Signal
	// Logger is the app logger
	Logger *logrus.Logger

	v *viper.Viper
}

// New returns returns a new instance of the inventory app
func New(_ context.Context, appKind model.AppKind, cfgFile string, loglevel int) (*App, error) {
	app := &App{
		v:      viper.New(),
		Config: &Configuration{AppKind: appKind},
		SyncWG: &sync.WaitGroup{},
		Logger: logrus.New(),
		TermCh: make(chan os.Signal, 1),
	}

	if err := app.LoadConfiguration(cfgFile); err != nil {
		return nil, err
	}

	app.Logger.Level = logLevel(loglevel, app.Config.Log.Level)
	app.Logger.SetFormatter(newFormatter(app.Config.Log.Format))

	if app.Config.Log.File != "" {
		app.Logger.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   app.Config.Log.File,
			MaxSize:    app.Config.Log.MaxSizeMB,
			MaxBackups: app.Config.Log.MaxBackups,
			MaxAge:     app.Config.Log.MaxAgeDays,
			Compress:   app.Config.Log.CompressLogs,
		}))
	}

	// register for SIGINT, SIGTERM
	signal.Notify(app.TermCh, syscall.SIGINT, syscall.SIGTERM)

	return app, nil
}

// logLevel returns the level set by the --log-level flag, falling back to log.level in the configuration.
func logLevel(flagLevel int, cfgLevel string) logrus.Level {
	switch flagLevel {
	case model.LogLevelDebug:
		return logrus.DebugLevel
	case model.LogLevelTrace:
		return logrus.TraceLevel
	}

	if lvl, err := logrus.ParseLevel(cfgLevel); err == nil {
		return lvl
	}

	return logrus.InfoLevel
}

func newFormatter(format string) logrus.Formatter {
	if format == "text" {
		return &runtime.Formatter{ChildFormatter: &logrus.TextFormatter{FullTimestamp: true}}
	}

	return &runtime.Formatter{ChildFormatter: &logrus.JSONFormatter{}}
}
