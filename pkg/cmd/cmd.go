// Package cmd contains the command line applications for the project.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/app"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/configs"
)

var (
	// configPath 配置文件或目录路径.
	configPath string
	// debug 附加调试输出.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "metastamp",
		Short: "Content fingerprinting service for creative assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "start the fingerprint HTTP service and event consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app.NewApp(configPath)
			defer func() { _ = a.Close() }()

			return a.Run()
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "print the application version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), configs.AppVersion)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./", "config file or directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable verbose debug output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	registerConfigsCommands()
	registerDBCommands()
	registerKVCommands()
	registerMQCommands()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
