// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"os"

	"github.com/pingcap/shardflow/pkg/cmd/consume"
	"github.com/pingcap/shardflow/pkg/cmd/produce"
	"github.com/pingcap/shardflow/pkg/cmd/version"
	"github.com/spf13/cobra"
)

// NewCmd creates the root command.
func NewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shardflow",
		Short: "Per-shard change-log consumer",
		Long: `Consume one shard of a Kinesis stream or a DynamoDB table stream, ` +
			`display, store or replicate its records and checkpoint the progress.`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
}

// AddShardflowCommands adds all subcommands to the root command.
func AddShardflowCommands(cmd *cobra.Command) {
	cmd.AddCommand(consume.NewCmdConsume())
	cmd.AddCommand(produce.NewCmdProduce())
	cmd.AddCommand(version.NewCmdVersion())
}

// Run runs the root command.
func Run() {
	cmd := NewCmd()

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	AddShardflowCommands(cmd)

	if err := cmd.Execute(); err != nil {
		cmd.PrintErrln(err)
		os.Exit(1)
	}
}
