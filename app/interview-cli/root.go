package main

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yoockh/yoointerview/config"
	"github.com/yoockh/yoointerview/internal/bootstrap"
	"github.com/yoockh/yoointerview/internal/logger"
)

const app = "interview-cli"

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:          app,
		Short:        "interview-cli runs spoken mock interviews locally and maintains the session store",
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a YAML config file (default: environment only)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func newLogger(cfg *config.AppConfig) *logrus.Logger {
	opts := logger.Options{Level: cfg.LogLevel, Format: "text", File: cfg.LogFile}
	if viper.GetBool("json") {
		opts.Format = "json"
	}
	if viper.GetBool("debug") {
		opts.Level = "debug"
	} else if cfg.LogLevel == "info" {
		// keep the transcript readable
		opts.Level = "warn"
	}
	return logger.New(opts)
}

// container loads the configuration and connects the selected back-ends.
func container(ctx context.Context) (*bootstrap.Container, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return bootstrap.NewContainer(ctx, cfg, newLogger(cfg), bootstrap.Options{LocalQueue: true})
}
