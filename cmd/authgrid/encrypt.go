package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/authgrid/internal/security/secretbox"
)

func encryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt <value>",
		Short: "Encrypt a config secret with the master key",
		Long: `Encrypts a value (DSN, signing seed) with the key in ` + secretbox.MasterKeyEnv + `
so it can be stored in the YAML config. Generate a key with:
  openssl rand -base64 32`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := secretbox.Encrypt(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}
