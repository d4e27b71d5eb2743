/*
 * Copyright (c) 2026, Oracle and/or its affiliates.
 * Licensed under the Universal Permissive License v 1.0 as shown at
 * https://oss.oracle.com/licenses/upl.
 */
// Command cohping opens an extend connection to a cluster proxy and
// measures ping round-trips; a quick way to verify reachability, TLS
// setup and proxy health.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"sigs.k8s.io/yaml"

	"github.com/oracle/coherence-go-extend-client/cmn"
	"github.com/oracle/coherence-go-extend-client/tcp"
	"github.com/oracle/coherence-go-extend-client/wire"
)

type flags struct {
	configPath  string
	addresses   []string
	connectWait time.Duration
	requestWait time.Duration
	interval    time.Duration
	count       int
	nameService bool
	useTLS      bool
	insecure    bool
	verbose     bool
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var fl flags
	cmd := &cobra.Command{
		Use:           "cohping [flags]",
		Short:         "ping a Coherence*Extend proxy",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Flags(), &fl)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&fl.configPath, "config", "c", "", "YAML config file")
	fs.StringSliceVarP(&fl.addresses, "address", "a", nil, "proxy address host:port (repeatable)")
	fs.DurationVar(&fl.connectWait, "connect-timeout", 10*time.Second, "connect timeout")
	fs.DurationVar(&fl.requestWait, "request-timeout", 10*time.Second, "request timeout")
	fs.DurationVarP(&fl.interval, "interval", "i", time.Second, "delay between pings")
	fs.IntVarP(&fl.count, "count", "n", 4, "number of pings (0 = forever)")
	fs.BoolVar(&fl.nameService, "name-service", false, "connect to the name-service subport")
	fs.BoolVar(&fl.useTLS, "tls", false, "connect over TLS")
	fs.BoolVar(&fl.insecure, "tls-insecure", false, "skip TLS certificate verification")
	fs.BoolVarP(&fl.verbose, "verbose", "v", false, "debug logging")
	return cmd
}

// loadConfig merges the YAML file with the command line; an explicitly set
// flag wins over the file.
func loadConfig(fs *pflag.FlagSet, fl *flags) (*cmn.Config, error) {
	cfg := &cmn.Config{}
	if fl.configPath != "" {
		raw, err := os.ReadFile(fl.configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.UnmarshalStrict(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", fl.configPath, err)
		}
	}
	if len(fl.addresses) > 0 {
		cfg.RemoteAddresses = fl.addresses
	}
	if len(cfg.RemoteAddresses) == 0 {
		return nil, fmt.Errorf("no proxy addresses; use --address or a config file")
	}
	if fs.Changed("connect-timeout") || cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = cmn.Duration(fl.connectWait)
	}
	if fs.Changed("request-timeout") || cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = cmn.Duration(fl.requestWait)
	}
	return cfg, cfg.Validate()
}

func run(fs *pflag.FlagSet, fl *flags) error {
	if fl.verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}

	cfg, err := loadConfig(fs, fl)
	if err != nil {
		return err
	}

	opts := []tcp.Option{}
	if fl.nameService {
		opts = append(opts, tcp.WithSubport(wire.SubportNameService))
	}
	if fl.useTLS {
		opts = append(opts, tcp.WithTLS(&tls.Config{InsecureSkipVerify: fl.insecure}))
	}

	it, err := tcp.NewInitiator(cfg, opts...)
	if err != nil {
		return err
	}
	if err := it.Start(context.Background()); err != nil {
		return err
	}
	defer it.Stop()

	conn, err := it.EnsureConnection()
	if err != nil {
		return err
	}
	fmt.Printf("connected to %s (member %s)\n", conn.RemoteAddr(), conn.Member())

	for i := 0; fl.count == 0 || i < fl.count; i++ {
		if i > 0 {
			time.Sleep(fl.interval)
		}
		rtt, err := conn.PingNow(cfg.RequestTimeout.D())
		if err != nil {
			fmt.Printf("ping %d: %v\n", i+1, err)
			continue
		}
		fmt.Printf("ping %d: %s rtt=%s\n", i+1, conn.RemoteAddr(), rtt)
	}

	stats := conn.Stats()
	fmt.Printf("sent %d messages (%d bytes), received %d messages (%d bytes), %d timeouts\n",
		stats.MessagesSent, stats.BytesSent, stats.MessagesReceived, stats.BytesReceived,
		stats.TimeoutCount)
	return nil
}
