package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/relay/internal/cli"
	"github.com/aretw0/relay/internal/demo"
	"github.com/aretw0/relay/internal/presentation/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List the active routes",
	Long:  `Prints the route table (conversations, commands, callbacks, text triggers) with their access flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg.Store.Driver = "memory" // listing needs no real store
		cfg.Lock.Distributed = false

		rt, err := cli.Build(context.Background(), cfg, &demo.LogMessenger{Logger: logger}, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		md := tui.RoutesMarkdown(rt.Engine.Table().Describe(), rt.Engine.Warnings())
		if raw, _ := cmd.Flags().GetBool("raw"); raw || !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Print(md)
			return nil
		}
		out, err := tui.NewRenderer()(md)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(routesCmd)
	routesCmd.Flags().Bool("raw", false, "Print plain Markdown")
}
