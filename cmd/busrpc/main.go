// Command busrpc is an interactive bus client: it dials an endpoint and
// issues a single Invoke, printing the result, generalizing the
// teacher's cmd/sipserver/main.go flag-based entrypoint into a
// urfave/cli/v2 command with "call" and "version" subcommands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/zurustar/busrpc/internal/bus"
	"github.com/zurustar/busrpc/internal/config"
	"github.com/zurustar/busrpc/internal/logging"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:  "busrpc",
		Usage: "call methods on objects bound across a bus connection",
		Commands: []*cli.Command{
			callCommand,
			versionCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var callCommand = &cli.Command{
	Name:      "call",
	Usage:     "invoke a bound object with a JSON array of arguments",
	ArgsUsage: "<name> [json-args]",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "endpoint", Value: "bus.ipc", Usage: "the bus socket path to dial"},
		&cli.DurationFlag{Name: "timeout", Value: 10 * time.Second, Usage: "call timeout"},
	},
	Action: func(c *cli.Context) error {
		name := c.Args().Get(0)
		if name == "" {
			return fmt.Errorf("usage: busrpc call <name> [json-args]")
		}

		var args []interface{}
		if raw := c.Args().Get(1); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return fmt.Errorf("parsing json-args: %w", err)
			}
		}

		cfg := config.GetDefaultConfig()
		cfg.Endpoint.Path = c.String("endpoint")
		cfg.Reconnect.Enabled = false

		logger := logging.NewConsoleLogger(logging.WarnLevel)
		defer logger.Sync()

		client := bus.NewClient(cfg, logger, nil)

		ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
		defer cancel()

		runDone := make(chan error, 1)
		go func() { runDone <- client.Run(ctx) }()

		conn, err := client.WaitForConnection(ctx)
		if err != nil {
			return fmt.Errorf("connecting to %s: %w", cfg.Endpoint.Path, err)
		}

		proxy := conn.GetProxy(name)
		result, err := proxy.Call(ctx, args, nil, nil)
		if err != nil {
			return fmt.Errorf("call %s: %w", name, err)
		}

		encoded, err := json.Marshal(result)
		if err != nil {
			fmt.Println(result)
		} else {
			fmt.Println(string(encoded))
		}

		cancel()
		<-runDone
		return nil
	},
}

var versionCommand = &cli.Command{
	Name:  "version",
	Usage: "print the busrpc version",
	Action: func(c *cli.Context) error {
		fmt.Println("busrpc", version)
		return nil
	},
}
