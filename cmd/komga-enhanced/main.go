// Copyright (c) 2026 Komga Enhanced. All rights reserved.

// Command komga-enhanced is the download orchestrator entry point.
//
// The root command starts the server; `version` prints build information.
// All wiring lives in serve.go — no business logic here.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/08shiro80/komga-enhanced-sub000/internal/platform/constants"
)

var rootCmd = &cobra.Command{
	Use:           constants.AppName,
	Short:         "Manga download orchestrator for Komga libraries",
	Long:          "Watches followed series, drives gallery-dl downloads, and materializes CBZ archives with ComicInfo metadata into Komga library folders.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and background scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the application version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", constants.AppName, constants.AppVersion)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
