// Package main 헤드리스 드로잉 클라이언트 CLI.
//
// 방 입장:
//
//	sketchctl join ABCD12 --name Alice
//
// 레지스트리:
//
//	sketchctl create ABCD12 --host Alice
//	sketchctl lookup ABCD12
//
// 서버 주소와 기본값은 SKETCH_* 환경 변수 또는 .env에서 읽는다.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"realtime-sketch/internal/config"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	cfg := config.LoadClient()

	rootCmd := &cobra.Command{
		Use:          "sketchctl",
		Short:        "Headless client for the realtime sketch server",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "WebSocket endpoint")
	rootCmd.PersistentFlags().StringVar(&cfg.RegistryURL, "registry", cfg.RegistryURL, "Room registry base URL")
	rootCmd.PersistentFlags().DurationVar(&cfg.RegistryTimeout, "registry-timeout", cfg.RegistryTimeout, "Room registry request timeout")

	rootCmd.AddCommand(
		buildJoinCmd(cfg),
		buildLookupCmd(cfg),
		buildCreateCmd(cfg),
		buildCodeCmd(),
	)
	return rootCmd
}
