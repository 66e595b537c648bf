package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"localesync/cli"
	"localesync/utils"
)

func main() {
	// Load environment variables BEFORE initializing logger
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to read .env file: %v\n", err)
	}

	utils.InitLogger()
	defer utils.Logger.Sync()

	// Ctrl+C and SIGTERM cancel the run before the next file is written.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.Execute(ctx, cli.Env{Logger: utils.Logger}, os.Args[1:])
	if err == nil {
		return
	}
	if !errors.Is(err, cli.ErrCheckFailed) {
		utils.Logger.Error("localesync failed", zap.Error(err))
	}
	fmt.Fprintln(os.Stderr, err)
	utils.Logger.Sync()
	os.Exit(1)
}
