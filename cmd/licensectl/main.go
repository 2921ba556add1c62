package main

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"license-signing-system/internal/cli"
	"license-signing-system/internal/config"
	applog "license-signing-system/internal/logger"
)

func main() {
	level := os.Getenv("LICENSE_LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	log, err := applog.New(config.LoggingConfig{Level: level, Development: true})
	if err != nil {
		log = zap.NewNop()
	}
	defer log.Sync() //nolint:errcheck

	rootCmd := cli.NewRootCmd(cli.NewApp(log))
	if err := rootCmd.Execute(); err != nil {
		// verify 已经打印了原因
		if !errors.Is(err, cli.ErrInvalidLicense) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
