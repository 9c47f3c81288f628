package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tranmanhhung/sn111/internal/auth"
)

var tokenFormat string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the admin API token",
	Long: `Generate and hash the bearer token that guards the admin endpoints.

Only the bcrypt hash of the token is stored in the config file; the raw
token is shown once at generation time and cannot be recovered.

Examples:
  sn111 token generate
  sn111 token hash sn111_adm_0123abcd...`,
}

var tokenGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new admin token",
	Long: `Generate a new admin token and the bcrypt hash that goes into the
config file.

Examples:
  sn111 token generate
  sn111 token generate --format json`,
	RunE: runTokenGenerate,
}

var tokenHashCmd = &cobra.Command{
	Use:   "hash <token>",
	Short: "Hash an existing admin token",
	Long: `Compute the bcrypt hash of an existing token for the config file, for
operators who mint tokens elsewhere.`,
	Args: cobra.ExactArgs(1),
	RunE: runTokenHash,
}

func init() {
	tokenCmd.PersistentFlags().StringVar(&tokenFormat, "format", "human", "Output format (json, human)")

	tokenCmd.AddCommand(tokenGenerateCmd)
	tokenCmd.AddCommand(tokenHashCmd)
	rootCmd.AddCommand(tokenCmd)
}

func runTokenGenerate(cmd *cobra.Command, args []string) error {
	token, hash, err := auth.GenerateToken()
	if err != nil {
		return err
	}

	if tokenFormat == "json" {
		printJSON(map[string]string{
			"token": token,
			"hash":  hash,
		})
		return nil
	}

	fmt.Println("Admin Token Created:")
	fmt.Println()
	fmt.Printf("  Token: %s\n", token)
	fmt.Printf("  Hash:  %s\n", hash)
	fmt.Println()
	fmt.Println("  Put the hash in sn111.yaml under auth.tokenHash (or set")
	fmt.Println("  SN111_AUTH_TOKENHASH) and enable auth.enabled. Clients send")
	fmt.Println("  the token as \"Authorization: Bearer <token>\".")
	fmt.Println()
	fmt.Println("  IMPORTANT: Store this token securely. It will not be shown again.")
	return nil
}

func runTokenHash(cmd *cobra.Command, args []string) error {
	token := args[0]
	hash, err := auth.HashToken(token)
	if err != nil {
		return err
	}

	if tokenFormat == "json" {
		printJSON(map[string]string{
			"token": auth.MaskToken(token),
			"hash":  hash,
		})
		return nil
	}

	fmt.Printf("  Token: %s\n", auth.MaskToken(token))
	fmt.Printf("  Hash:  %s\n", hash)
	return nil
}
