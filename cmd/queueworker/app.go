package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/miladsoleymani/queueworker"
	"github.com/miladsoleymani/queueworker/config"
	"github.com/miladsoleymani/queueworker/core"
	"github.com/miladsoleymani/queueworker/core/middleware"
	"github.com/miladsoleymani/queueworker/internal/logging"
	"github.com/miladsoleymani/queueworker/processor"
	"github.com/miladsoleymani/queueworker/queue"
)

// newApp builds the command tree. Flag defaults come from cfg so that flags
// override the environment.
func newApp(cfg config.Config, stdout, stderr io.Writer) *cli.App {
	queueFlag := &cli.StringFlag{
		Name:    "queue",
		Aliases: []string{"q"},
		Usage:   "queue name, resolved with the configured driver",
		Value:   cfg.QueueName,
	}
	paramsFlag := func(def string) *cli.StringFlag {
		return &cli.StringFlag{
			Name:  "params",
			Usage: `parameters as a query string or JSON object, e.g. "wait_time=5s&batch_size=10"`,
			Value: def,
		}
	}

	return &cli.App{
		Name:      "queueworker",
		Usage:     "Forward queue messages to named handlers",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error", Value: cfg.LogLevel},
			&cli.StringFlag{Name: "log-format", Usage: "console or json", Value: cfg.LogFormat},
			&cli.StringFlag{Name: "driver", Usage: "queue driver (" + strings.Join(queue.Drivers(), ", ") + ")", Value: cfg.QueueDriver},
			&cli.StringSliceFlag{Name: "url", Usage: "queue server URL, repeatable", Value: cli.NewStringSlice(cfg.QueueURLs...)},
			&cli.StringFlag{Name: "group", Usage: "consumer group", Value: cfg.QueueGroup},
			&cli.StringFlag{Name: "region", Usage: "cloud region", Value: cfg.QueueRegion},
			&cli.StringSliceFlag{Name: "option", Usage: "driver option as key=value, repeatable"},
			&cli.BoolFlag{Name: "handle-stop-signals", Usage: "stop awaiting on SIGINT or SIGTERM", Value: cfg.HandleStopSignals},
		},
		Commands: []*cli.Command{
			{
				Name:      "process",
				Usage:     "Process one serialized message",
				ArgsUsage: "[message]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "message produced by the encode command"},
				},
				Action: func(c *cli.Context) error {
					msg := c.String("message")
					if msg == "" {
						msg = c.Args().First()
					}
					return run(c, cfg, core.Request{Action: core.ActionProcess, Message: msg})
				},
			},
			{
				Name:  "receive",
				Usage: "Receive and process one batch",
				Flags: []cli.Flag{
					queueFlag,
					&cli.IntFlag{Name: "max-messages", Aliases: []string{"n"}, Usage: "batch size", Value: cfg.MaxMessages},
					paramsFlag(cfg.ReceiveParams),
				},
				Action: func(c *cli.Context) error {
					return run(c, cfg, core.Request{
						Action:      core.ActionReceive,
						Queue:       c.String("queue"),
						MaxMessages: c.Int("max-messages"),
						Params:      c.String("params"),
					})
				},
			},
			{
				Name:  "await",
				Usage: "Process messages until stopped",
				Flags: []cli.Flag{queueFlag, paramsFlag(cfg.ReceiveParams)},
				Action: func(c *cli.Context) error {
					return run(c, cfg, core.Request{
						Action: core.ActionAwait,
						Queue:  c.String("queue"),
						Params: c.String("params"),
					})
				},
			},
			{
				Name:      "send",
				Usage:     "Send a message naming a handler",
				ArgsUsage: "<handler>",
				Flags: []cli.Flag{
					queueFlag,
					&cli.StringSliceFlag{Name: "param", Aliases: []string{"p"}, Usage: "handler parameter as key=value, repeatable"},
					paramsFlag(cfg.SendParams),
				},
				Action: func(c *cli.Context) error {
					msg, err := messageFromArgs(c)
					if err != nil {
						return err
					}
					return run(c, cfg, core.Request{
						Action:  core.ActionSend,
						Queue:   c.String("queue"),
						Message: msg,
						Params:  c.String("params"),
					})
				},
			},
			{
				Name:      "encode",
				Usage:     "Print the serialized form of a message for the process command",
				ArgsUsage: "<handler>",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "param", Aliases: []string{"p"}, Usage: "handler parameter as key=value, repeatable"},
				},
				Action: func(c *cli.Context) error {
					msg, err := messageFromArgs(c)
					if err != nil {
						return err
					}
					s, err := core.Base64JSON{}.Serialize(msg)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(c.App.Writer, s)
					return err
				},
			},
		},
	}
}

// run builds a worker for the command and dispatches req on it.
func run(c *cli.Context, cfg config.Config, req core.Request) error {
	logger, err := logging.New(c.String("log-level"), c.String("log-format"), c.App.ErrWriter)
	if err != nil {
		return err
	}

	base := cfg.Queue()
	base.Driver = c.String("driver")
	base.URLs = c.StringSlice("url")
	base.Group = c.String("group")
	base.Region = c.String("region")
	base.Options, err = withOptions(base.Options, c.StringSlice("option"))
	if err != nil {
		return err
	}

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	pool := queue.NewPool(ctx, base)
	defer func() {
		if err := pool.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing queues")
		}
	}()

	opts := []core.Option{core.WithLogger(logger), core.WithLocator(pool)}
	if c.Bool("handle-stop-signals") {
		opts = append(opts, core.WithSignals(os.Interrupt, syscall.SIGTERM))
	}
	w := queueworker.NewWithStrategy(
		processor.NewForwardStrategy(nil, processor.WithOutput(c.App.Writer)),
		opts...,
	)
	defer w.Close()

	stats := newHandlerStats()
	defer stats.log(logger)
	registerHandlers(w.Dispatcher(), stats)

	res, err := w.Dispatch(ctx, req)
	if err != nil {
		return err
	}
	if req.Action == core.ActionSend {
		if msg, ok := res.(core.Message); ok {
			_, err = fmt.Fprintln(c.App.Writer, msg.ID())
		}
	}
	return err
}

func registerHandlers(d *core.Dispatcher, collector middleware.MetricsCollector) {
	d.Use(middleware.Recovery())
	d.Use(middleware.Metrics(collector))
	d.Use(middleware.Logging())

	d.Handle("echo", func(c core.Context) (any, error) {
		return c.Params(), nil
	})
	d.Handle("upper", func(c core.Context) (any, error) {
		return strings.ToUpper(c.Param("text")), nil
	})
}

func messageFromArgs(c *cli.Context) (*core.Envelope, error) {
	handler := strings.TrimSpace(c.Args().First())
	if handler == "" {
		return nil, fmt.Errorf("%w: a handler name is required", core.ErrInvalidParameter)
	}
	params, err := withOptions(nil, c.StringSlice("param"))
	if err != nil {
		return nil, err
	}
	return core.NewMessage([]byte(handler), params), nil
}

// withOptions merges key=value pairs over base without modifying it.
func withOptions(base map[string]string, pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(base)+len(pairs))
	for k, v := range base {
		out[k] = v
	}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%w: %q is not key=value", core.ErrInvalidParameter, p)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}
