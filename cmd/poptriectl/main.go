// Copyright (c) 2024 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Command poptriectl opens a PTV2 poptrie database and runs lookup/contains
// queries against it, single-shot or batched, for operational inspection
// and scripting.
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/metacubex/poptrie"
)

func main() {
	if err := newApp().Execute(); err != nil {
		logrus.Fatal(err)
	}
}

// newApp builds the root command: a root *cobra.Command with persistent
// flags for logging, a PersistentPreRunE that applies them, and
// RunE-returning subcommands instead of os.Exit calls scattered through
// the tree.
func newApp() *cobra.Command {
	var configPath string
	var logLevel string
	var logFormat string
	cfg := new(cliConfig)

	root := &cobra.Command{
		Use:           "poptriectl",
		Short:         "Inspect and query poptrie IP-lookup databases",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level [trace, debug, info, warn, error]")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format [text, json]")
	root.PersistentFlags().IntVar(&cfg.Workers, "workers", 0, "batch fan-out width (0 = config/default)")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		loaded, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.LogLevel = logLevel
		}
		if logFormat != "" {
			loaded.LogFormat = logFormat
		}
		if cmd.Flags().Changed("workers") {
			loaded.Workers = cfg.Workers
		}
		*cfg = loaded

		lvl, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logrus.SetLevel(lvl)

		switch cfg.LogFormat {
		case "json":
			logrus.SetFormatter(new(logrus.JSONFormatter))
		default:
			logrus.SetFormatter(new(logrus.TextFormatter))
		}

		return nil
	}

	root.AddCommand(
		containsCommand(),
		lookupCommand(),
		batchCommand(cfg),
		statCommand(),
	)

	return root
}

func containsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "contains <file> <ip>",
		Short: "Report whether any stored prefix contains <ip>",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			idx, err := poptrie.Open(args[0])
			if err != nil {
				return err
			}
			defer idx.Close()

			result := idx.ContainsStrings([]string{args[1]})
			fmt.Println(result[0])
			return nil
		},
	}
}

func lookupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <file> <ip>",
		Short: "Print the value of the longest prefix matching <ip>",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			idx, err := poptrie.Open(args[0])
			if err != nil {
				return err
			}
			defer idx.Close()

			result := idx.LookupStrings([]string{args[1]})
			fmt.Println(result[0])
			return nil
		},
	}
}

// batchCommand runs the batch mode, opening the index with cfg.Workers as
// the fan-out width for ContainsStrings/LookupStrings (cfg is populated by
// the root command's PersistentPreRunE, which always runs first).
func batchCommand(cfg *cliConfig) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Run contains/lookup over newline-delimited addresses on stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			idx, err := poptrie.Open(args[0], poptrie.WithWorkers(cfg.Workers))
			if err != nil {
				return err
			}
			defer idx.Close()

			var addrs []string
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				addrs = append(addrs, scanner.Text())
			}
			if err := scanner.Err(); err != nil {
				return err
			}

			w := bufio.NewWriter(os.Stdout)
			defer w.Flush()

			switch mode {
			case "lookup":
				for _, v := range idx.LookupStrings(addrs) {
					fmt.Fprintln(w, v)
				}
			default:
				for _, v := range idx.ContainsStrings(addrs) {
					fmt.Fprintln(w, v)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "contains", "contains or lookup")
	return cmd
}

func statCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <file>",
		Short: "Print the loaded index's layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			idx, err := poptrie.Open(args[0])
			if err != nil {
				return err
			}
			defer idx.Close()

			stats := idx.Stat()
			fmt.Printf("node_count:   %d\n", stats.NodeCount)
			fmt.Printf("values_count: %d\n", stats.ValuesCount)
			fmt.Printf("nodes_start:  %d\n", stats.NodesStart)
			fmt.Printf("values_start: %d\n", stats.ValuesStart)
			fmt.Printf("legacy:       %v\n", stats.Legacy)
			return nil
		},
	}
}
