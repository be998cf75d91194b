package main

import (
	"fmt"
	"os"

	"github.com/hostward/device-agent/internal/crypto"
	"github.com/hostward/device-agent/internal/identity"
	"github.com/hostward/device-agent/internal/secure"
	"github.com/hostward/device-agent/pkg/config"
	"github.com/spf13/cobra"
)

func newConfigCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the agent configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteDefault(opts.configPath, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", opts.configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	cmd.AddCommand(initCmd)
	return cmd
}

func newUnsealCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unseal <file>",
		Short: "Decrypt a sealed snapshot written on this host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if !secure.IsSealed(data) {
				return fmt.Errorf("%s is not a sealed snapshot", args[0])
			}

			sealer := secure.NewSealer(crypto.NewAESProvider(), identity.DefaultProbe())
			plaintext, err := sealer.Open(cmd.Context(), data)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(plaintext)
			return err
		},
	}
}
