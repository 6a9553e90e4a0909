package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/querylab/sift/internal/core/auth"
	"github.com/querylab/sift/internal/core/config"
	"github.com/querylab/sift/internal/core/db"
	"github.com/querylab/sift/internal/types"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage API keys",
}

var apikeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new API key",
	Long: `Mints an API key under a configured HMAC secret and stores its hash.
The plaintext key is printed once and cannot be recovered afterwards.`,
	RunE: runAPIKeyCreate,
}

var apikeyRevokeCmd = &cobra.Command{
	Use:   "revoke <api_key_id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runAPIKeyRevoke,
}

func init() {
	rootCmd.AddCommand(apikeyCmd)
	apikeyCmd.AddCommand(apikeyCreateCmd)
	apikeyCmd.AddCommand(apikeyRevokeCmd)
	apikeyCreateCmd.Flags().String("label", "", "human-readable key label")
	apikeyCreateCmd.Flags().String("secret-id", "", "signing secret to use (defaults to the only configured secret)")
}

func runAPIKeyCreate(cmd *cobra.Command, args []string) error {
	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return fmt.Errorf("no HMAC secrets configured (set SIFT_HMAC_SECRET environment variable)")
	}

	secretID, _ := cmd.Flags().GetString("secret-id")
	if secretID == "" {
		if len(secrets) > 1 {
			return fmt.Errorf("multiple secrets configured, choose one with --secret-id")
		}
		for id := range secrets {
			secretID = id
		}
	}
	secret, ok := secrets[secretID]
	if !ok {
		return fmt.Errorf("secret_id %q not found in environment", secretID)
	}

	key, hash, err := auth.GenerateAPIKey(secretID, secret)
	if err != nil {
		return err
	}

	if dbURL == "" {
		return fmt.Errorf("--db-url required")
	}
	database, err := db.Open(dbURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	label, _ := cmd.Flags().GetString("label")
	id := types.NewAPIKeyID()
	if _, err := queries.Exec("insert-api-key", string(id), hash, label, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to store API key: %w", err)
	}

	fmt.Printf("api_key_id: %s\n", id)
	if label != "" {
		fmt.Printf("label:      %s\n", label)
	}
	fmt.Printf("api_key:    %s\n", key)
	fmt.Println("\nStore the api_key now; it will not be shown again.")
	return nil
}

func runAPIKeyRevoke(cmd *cobra.Command, args []string) error {
	if dbURL == "" {
		return fmt.Errorf("--db-url required")
	}
	database, err := db.Open(dbURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	res, err := queries.Exec("revoke-api-key", time.Now().UTC(), args[0])
	if err != nil {
		return fmt.Errorf("failed to revoke API key: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("api_key_id %s not found", args[0])
	}

	fmt.Printf("revoked %s\n", args[0])
	return nil
}
