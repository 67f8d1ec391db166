package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joripage/makerbot/config"
	"github.com/joripage/makerbot/pkg/bot"
	"github.com/joripage/makerbot/pkg/clock"
	"github.com/joripage/makerbot/pkg/logging"
	"github.com/joripage/makerbot/pkg/venue/paper"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const banner = `
 _ __ ___   __ _| | _____ _ __| |__   ___ | |_
| '_ ' _ \ / _' | |/ / _ \ '__| '_ \ / _ \| __|
| | | | | | (_| |   <  __/ |  | |_) | (_) | |_
|_| |_| |_|\__,_|_|\_\___|_|  |_.__/ \___/ \__|  %s
`

const usage = `usage:
  makerbot start <market> [--config=<file>] [--env-file=<file>]
  makerbot --version
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := flag.NewFlagSet("makerbot", flag.ContinueOnError)
	showVersion := root.Bool("version", false, "print the version and exit")
	root.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := root.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Println(version)
		return 0
	}
	if root.NArg() == 0 || root.Arg(0) != "start" {
		root.Usage()
		return 2
	}

	market, configFile, envFile, err := parseStart(root.Args()[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		root.Usage()
		return 2
	}
	if err := start(market, configFile, envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// parseStart accepts the market before or after the flags.
func parseStart(args []string) (market, configFile, envFile string, err error) {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	fs.StringVar(&configFile, "config", "", "config file path")
	fs.StringVar(&envFile, "env-file", ".env", "file with MAKERBOT_LOGIN and MAKERBOT_SECRET")
	if err := fs.Parse(args); err != nil {
		return "", "", "", err
	}
	if fs.NArg() == 0 {
		return "", "", "", fmt.Errorf("missing market")
	}
	market = fs.Arg(0)
	if err := fs.Parse(fs.Args()[1:]); err != nil {
		return "", "", "", err
	}
	if fs.NArg() > 0 {
		return "", "", "", fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return market, configFile, envFile, nil
}

func start(market, configFile, envFile string) error {
	cfg, err := config.Load(configFile, market)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Settings)
	if err != nil {
		return err
	}
	defer logger.Sync() // nolint
	zap.ReplaceGlobals(logger.Zap())

	fmt.Printf(banner, version)

	creds, err := config.LoadCredentials(envFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger.With(zap.String("market", market)))

	clk := clock.Real{}
	exchange, err := paper.FromConfig(*cfg.Paper, market, clk)
	if err != nil {
		return err
	}

	opts, closeAll, err := wire(ctx, cfg, market)
	if err != nil {
		return err
	}
	defer closeAll()

	logger.Info(ctx, "starting",
		zap.String("version", version),
		zap.String("market", market),
		zap.String("env", cfg.Settings.Env),
		zap.Stringer("log_level", cfg.Settings.LogLevel))

	return bot.New(cfg.Settings, creds, exchange, clk, opts...).Run(ctx)
}

func newLogger(s config.Settings) (*logging.Logger, error) {
	if s.LogsToFile() {
		return logging.NewFileLogger(s.LogLevel, logging.DefaultLogFile)
	}
	return logging.NewLogger(s.LogLevel), nil
}
