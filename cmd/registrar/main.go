// Package main 是 registrar 的独立 sidecar 进程。
//
// 宿主服务无法直接嵌入 registrar 包时，以 sidecar 方式部署：
// 读取配置完成注册，按 status.health_url 探测宿主健康并上报，
// 收到 SIGINT/SIGTERM 后注销并退出。
//
//	registrar run --config registrar --config-path /etc/registrar
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ceyewan/registrar/registrar"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "registrar",
		Short:         "Service self-registration sidecar",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Register the service and keep the registration alive until a signal arrives",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.configName, "config", "registrar", "config file name without extension")
	cmd.Flags().StringSliceVar(&opts.configPaths, "config-path", []string{".", "./config"}, "config search paths")
	cmd.Flags().StringVar(&opts.envPrefix, "env-prefix", "REGISTRAR", "environment variable prefix")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("registrar version %s\n", registrar.Version)
			cmd.Printf("Go version: %s\n", runtime.Version())
		},
	}
}
