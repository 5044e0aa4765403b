package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/relay/internal/cli"
	"github.com/aretw0/relay/internal/presentation/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Chat with the demo bot from the terminal",
	Long: `Starts an interactive console that plays the chat platform: typed lines
become commands, button clicks or text messages, and the bot's messages and
notices are printed back.

` + cli.ConsoleHelp,
	RunE: func(cmd *cobra.Command, args []string) error {
		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		user, _ := cmd.Flags().GetInt64("user")
		interactive := term.IsTerminal(int(os.Stdin.Fd()))
		color := term.IsTerminal(int(os.Stdout.Fd()))

		console := cli.NewConsole(os.Stdout, color, user)
		rt, _, err := buildRuntime(sigCtx, cmd, console)
		if err != nil {
			return err
		}
		defer rt.Close()

		if interactive {
			tui.PrintBanner(os.Stdout)
			fmt.Println("Type :help for the input syntax.")
		}
		return cli.RunConsole(sigCtx, rt, console, os.Stdin, os.Stdout, interactive)
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().Int64P("user", "u", 1, "User id to act as")
}
