package commands

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/najoast/litebus/bootstrap"
	"github.com/najoast/litebus/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the litebus process and block until shutdown",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader()

	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = loader.Load(configFile)
	} else {
		cfg, err = loader.AutoLoad()
	}
	if err != nil {
		return err
	}

	if httpBindURL != "" {
		cfg.Network.HTTPBindURL = httpBindURL
	}
	if tcpBindURL != "" {
		cfg.Network.TCPBindURL = tcpBindURL
	}
	if threadCount != 0 {
		cfg.Actor.ThreadCount = threadCount
	}
	if debug {
		cfg.App.Debug = true
		cfg.Log.Level = config.LogLevelDebug
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := newLogger(cfg)
	log.WithField("app", cfg.App.Name).Info("starting litebus")

	app := bootstrap.NewApplication(log)
	if err := app.Configure(cfg); err != nil {
		return err
	}

	return app.Run(cmd.Context())
}

// newLogger builds the process-wide *logrus.Entry from cfg.Log, the
// single collaborator every subsystem (bootstrap, actorsys, timer,
// httpd) receives instead of reaching for a package-level logger.
func newLogger(cfg *config.Config) *logrus.Entry {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Log.Level.String())
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{DisableColors: !cfg.Log.Color})
	}

	return logrus.NewEntry(logger)
}
