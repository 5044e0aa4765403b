package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/relay/internal/cli"
	"github.com/aretw0/relay/internal/demo"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the route table and workflows for consistency",
	Long: `Builds the route table and reports duplicate triggers, overlapping callback
prefixes, unreachable conversations and workflow states exiting to unknown
states. Exits non-zero when anything is found.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg.Store.Driver = "memory"
		cfg.Lock.Distributed = false

		rt, err := cli.Build(context.Background(), cfg, &demo.LogMessenger{Logger: logger}, logger)
		if err != nil {
			return err
		}
		defer rt.Close()

		var problems []error
		for _, w := range rt.Engine.Warnings() {
			problems = append(problems, errors.New(w.String()))
		}
		for _, wf := range rt.Bot.Workflows() {
			if err := wf.Validate(); err != nil {
				problems = append(problems, err)
			}
		}
		if len(problems) > 0 {
			return fmt.Errorf("validation failed:\n%w", errors.Join(problems...))
		}
		fmt.Println("Routes are valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
