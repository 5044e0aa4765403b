package main

import (
	"context"
	"fmt"

	"github.com/aretw0/relay/internal/cli"
	"github.com/aretw0/relay/internal/demo"
	"github.com/aretw0/relay/internal/presentation/graph"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <workflow>",
	Short: "Export a conversation's state graph",
	Long: `Outputs a Mermaid diagram (graph TD) of a conversation workflow. With
--live, states are annotated with the number of active sessions found in the
configured store.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		live, _ := cmd.Flags().GetBool("live")
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if !live {
			cfg.Store.Driver = "memory"
			cfg.Lock.Distributed = false
		}

		rt, err := cli.Build(context.Background(), cfg, &demo.LogMessenger{Logger: logger}, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		for _, wf := range rt.Bot.Workflows() {
			if wf.Name() != args[0] {
				continue
			}
			var overlay *graph.GraphOverlay
			if live {
				sessions, err := rt.Engine.Sessions().List(context.Background())
				if err != nil {
					return err
				}
				overlay = graph.OverlayFromSessions(wf.Name(), sessions)
			}
			fmt.Print(graph.GenerateMermaid(wf, overlay))
			return nil
		}
		return fmt.Errorf("unknown workflow %q", args[0])
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().Bool("live", false, "Overlay active session counts from the configured store")
}
