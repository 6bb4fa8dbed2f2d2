package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/app"
	"github.com/aussiebroadwan/tokenrefresh/pkg/cryptox"
	"github.com/aussiebroadwan/tokenrefresh/pkg/slogx"
)

var (
	keygenAlgorithm string
	keygenOverwrite bool
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the signing key and seal it into the vault",
	Long: `Generates a private key, seals it into the file vault under
TOKEN_SIGNER_PRIVATE_KEY_ALIAS and prints the identity verifiers resolve.

EdDSA and ES256 keys can be published as did:key, so PARTICIPANT_DID may stay
unset. RS256 keys need a did:web PARTICIPANT_DID whose document lists the key.`,
	Example: `  VAULT_DIR=/var/lib/tokenrefresh/vault \
  VAULT_MASTER_KEY_PATH=/etc/tokenrefresh/master.key \
  TOKEN_SIGNER_PRIVATE_KEY_ALIAS=dataplane-signer \
  tokenrefresh keygen --alg EdDSA`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := app.LoadConfig()
		if cfg.SigningKeyAlias == "" {
			return fmt.Errorf("TOKEN_SIGNER_PRIVATE_KEY_ALIAS is required")
		}

		logger := slogx.New(slogx.Config{
			Service: "tokenrefresh",
			Version: app.BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  "text",
			Output:  cmd.ErrOrStderr(),
		})

		info, err := app.GenerateSigningKey(cmd.Context(), cfg, keygenAlgorithm, keygenOverwrite, logger)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Alias:  ", info.Alias)
		fmt.Fprintln(out, "Issuer: ", info.DID)
		if info.KeyID != "" {
			fmt.Fprintln(out, "Key ID: ", info.KeyID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)

	keygenCmd.Flags().StringVar(&keygenAlgorithm, "alg", cryptox.AlgEdDSA,
		fmt.Sprintf("Key algorithm (one of: %s, %s, %s)", cryptox.AlgEdDSA, cryptox.AlgES256, cryptox.AlgRS256))
	keygenCmd.Flags().BoolVar(&keygenOverwrite, "overwrite", false,
		"Replace an existing key under the alias. Tokens signed with the old key stop validating")
}
