package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/app"
	"github.com/aussiebroadwan/tokenrefresh/pkg/jwtx"
	"github.com/aussiebroadwan/tokenrefresh/pkg/refreshsdk"
	"github.com/aussiebroadwan/tokenrefresh/pkg/slogx"
)

var (
	issueSubject  string
	issueAudience []string
	issueScope    string
	issueContext  []string
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a token pair directly from the configured store and vault",
	Long: `Starts a new token lineage the way the control plane does when a transfer
begins, and prints the token pair as JSON. Meant for operators and local
testing; the store and vault must be the ones the running service uses.`,
	Example: `  tokenrefresh issue --sub did:web:consumer.example \
    --aud did:web:provider.example --scope transfer:read \
    --context transferProcessId=tp-1`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if issueSubject == "" {
			return fmt.Errorf("--sub is required")
		}

		refreshContext := make(map[string]string, len(issueContext))
		for _, kv := range issueContext {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return fmt.Errorf("--context %q is not key=value", kv)
			}
			refreshContext[k] = v
		}

		cfg := app.LoadConfig()
		a, err := app.NewWithLogger(cfg, slogx.New(slogx.Config{
			Service: "tokenrefresh",
			Version: app.BuildVersion,
			Env:     cfg.Env,
			Level:   "warn",
			Format:  "text",
			Output:  cmd.ErrOrStderr(),
		}))
		if err != nil {
			return err
		}
		defer a.Close()

		now := time.Now()
		claims := jwtx.NewAccessClaims("", issueSubject, issueAudience, issueScope, 0, now)
		tok, err := a.Service().Issue(cmd.Context(), claims, refreshContext)
		if err != nil {
			return err
		}

		resp := refreshsdk.TokenResponse{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			TokenType:    tok.TokenType,
			ExpiresIn:    tok.ExpiresIn(now),
			Scope:        issueScope,
		}
		if !tok.RefreshExpiresAt.IsZero() {
			resp.RefreshExpiresIn = int64(tok.RefreshExpiresAt.Sub(now).Seconds())
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	rootCmd.AddCommand(issueCmd)

	issueCmd.Flags().StringVar(&issueSubject, "sub", "", "Subject, usually the consumer's DID")
	issueCmd.Flags().StringSliceVar(&issueAudience, "aud", nil, "Audience (repeatable)")
	issueCmd.Flags().StringVar(&issueScope, "scope", "", "Space-delimited scope")
	issueCmd.Flags().StringArrayVar(&issueContext, "context", nil,
		"Refresh context entry as key=value, stored with the lineage (repeatable)")
}
