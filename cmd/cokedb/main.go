/*
Copyright 2023 The CokeDB Authors. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/BingCoke/CokeDB/pkg/logger"
	"github.com/BingCoke/CokeDB/pkg/server"
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cokedb",
		Short: "CokeDB server",
		Long:  "CokeDB is a small relational database built atop an ordered key-value store.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
		SilenceUsage: true,
	}

	flags := cmd.Flags()
	flags.String("address", "0.0.0.0", "bind address")
	flags.Int("port", 4406, "bind port")
	flags.Int("metrics-port", 9497, "prometheus metrics port (0 disables)")
	flags.String("logfile", "", "log to this file instead of stderr")
	flags.String("loglevel", "info", "log level: debug, info, warn or error")
	flags.String("config", "", "config file (YAML)")

	viper.BindPFlags(flags)
	viper.SetEnvPrefix("COKEDB")
	viper.AutomaticEnv()

	return cmd
}

func serve() error {
	if cfg := viper.GetString("config"); cfg != "" {
		viper.SetConfigFile(cfg)
		if err := viper.ReadInConfig(); err != nil {
			return err
		}
	}

	log, err := buildLogger()
	if err != nil {
		return err
	}

	opts := server.DefaultOptions().
		WithAddress(viper.GetString("address")).
		WithPort(viper.GetInt("port")).
		WithMetricsPort(viper.GetInt("metrics-port")).
		WithLogger(log)

	srv, err := server.New(opts)
	if err != nil {
		return err
	}

	err = srv.Start()
	if err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infof("shutting down")
	return srv.Stop()
}

func buildLogger() (logger.Logger, error) {
	level := logger.LogInfo
	switch viper.GetString("loglevel") {
	case "debug":
		level = logger.LogDebug
	case "warn", "warning":
		level = logger.LogWarn
	case "error":
		level = logger.LogError
	}

	if path := viper.GetString("logfile"); path != "" {
		l, err := logger.NewFileLogger("cokedb", path)
		if err != nil {
			return nil, err
		}
		l.SetLogLevel(level)
		return l, nil
	}

	l := logger.NewSimpleLoggerWithLevel("cokedb", os.Stderr, level)
	return l, nil
}
