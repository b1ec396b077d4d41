package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/alovak/terminal-playground/gateway"
	"github.com/joho/godotenv"
	"golang.org/x/exp/slog"
)

var (
	flagConfig = flag.String("config", "", "path to YAML config file (optional)")
	flagEnv    = flag.String("env", ".env", "dotenv file loaded before reading the environment")
	flagDebug  = flag.Bool("debug", false, "enable debug logging")
)

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *flagDebug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if err := godotenv.Load(*flagEnv); err != nil && !os.IsNotExist(err) {
		logger.Warn("loading dotenv file", slog.String("path", *flagEnv), slog.Any("err", err))
	}

	config, err := gateway.LoadConfig(*flagConfig)
	if err != nil {
		logger.Error("loading config", "err", err)
		os.Exit(1)
	}

	app := gateway.NewApp(logger, config)
	if err := app.Start(); err != nil {
		logger.Error("starting gateway", "err", err)
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	app.Shutdown()
}
