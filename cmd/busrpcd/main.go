// Command busrpcd runs a bus server, generalizing the teacher's
// cmd/sipserver/main.go (flag.String + log.Fatalf) into a
// urfave/cli/v2 command with config-file and endpoint-override flags.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/zurustar/busrpc/internal/bus"
	"github.com/zurustar/busrpc/internal/config"
	"github.com/zurustar/busrpc/internal/logging"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:  "busrpcd",
		Usage: "run a bus RPC server endpoint",
		Commands: []*cli.Command{
			serveCommand,
			versionCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "load a config file and serve until interrupted",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "busrpcd.yaml", Usage: "path to the YAML config file"},
		&cli.StringFlag{Name: "endpoint", Usage: "override the configured endpoint path"},
	},
	Action: func(c *cli.Context) error {
		mgr := config.NewManager()
		cfg, err := mgr.Load(c.String("config"))
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("loading config: %w", err)
			}
			cfg = config.GetDefaultConfig()
		}
		if endpoint := c.String("endpoint"); endpoint != "" {
			cfg.Endpoint.Path = endpoint
		}

		level, err := logging.ParseLogLevel(cfg.Logging.Level)
		if err != nil {
			level = logging.InfoLevel
		}
		var logger logging.Logger
		if cfg.Logging.File != "" {
			logger, err = logging.NewFileLogger(level, cfg.Logging.File)
			if err != nil {
				return fmt.Errorf("opening log file: %w", err)
			}
		} else {
			logger = logging.NewConsoleLogger(level)
		}
		defer logger.Sync()

		srv := bus.NewServer(cfg, logger, nil)
		return srv.RunWithSignalHandling()
	},
}

var versionCommand = &cli.Command{
	Name:  "version",
	Usage: "print the busrpcd version",
	Action: func(c *cli.Context) error {
		fmt.Println("busrpcd", version)
		return nil
	},
}
