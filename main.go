// Package main はアプリケーションのエントリーポイントを提供します。
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand はサブコマンドをまとめたルートコマンドを作成します。
func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "koyomi",
		Short:        "koyomi renders tabular daily data as a calendar of stacked bars.",
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newRenderCommand(),
		newDemoCommand(),
	)
	return root
}
