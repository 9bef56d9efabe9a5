package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ruralpay/payauth/internal/config"
	"github.com/ruralpay/payauth/internal/cop"
	"github.com/ruralpay/payauth/internal/database"
	"github.com/ruralpay/payauth/internal/hsm"
	"github.com/ruralpay/payauth/internal/models"
	"github.com/ruralpay/payauth/internal/modulus"
	"github.com/ruralpay/payauth/internal/rails"
	"github.com/ruralpay/payauth/internal/repository"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func newRootCmd() *cobra.Command {
	var output string

	root := &cobra.Command{
		Use:          "payctl",
		Short:        "Offline tools for the payment authorization pipeline",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&output, "output", "o", "json", "output format: json or yaml")

	emit := func(cmd *cobra.Command, v any) error {
		return render(cmd.OutOrStdout(), output, v)
	}

	root.AddCommand(
		newModulusCmd(emit),
		newCoPCmd(emit),
		newRailCmd(emit),
		newHashPINCmd(openPINStore),
	)
	return root
}

func render(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		return yaml.NewEncoder(w).Encode(v)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

type printer func(cmd *cobra.Command, v any) error

func newModulusCmd(emit printer) *cobra.Command {
	var tablePath string

	cmd := &cobra.Command{
		Use:   "modulus <sort-code> <account-number>",
		Short: "Run the sort code / account number checksum",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			validator, err := loadValidator(tablePath)
			if err != nil {
				return err
			}
			sortCode := models.NormalizeSortCode(args[0])
			return emit(cmd, struct {
				SortCode string         `json:"sortCode" yaml:"sortCode"`
				Result   modulus.Result `json:"result" yaml:"result"`
				Rules    []modulus.Rule `json:"rules,omitempty" yaml:"rules,omitempty"`
			}{
				SortCode: sortCode,
				Result:   validator.Validate(args[0], args[1]),
				Rules:    validator.RulesFor(sortCode),
			})
		},
	}
	cmd.Flags().StringVar(&tablePath, "table", "", "weight table YAML to use instead of the built-in one")
	return cmd
}

func loadValidator(path string) (*modulus.Validator, error) {
	if path == "" {
		return modulus.NewValidator()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read weight table: %w", err)
	}
	return modulus.LoadTable(data)
}

func newCoPCmd(emit printer) *cobra.Command {
	return &cobra.Command{
		Use:   "cop <entered-name> <account-holder-name>",
		Short: "Classify an entered payee name against the account holder's name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := cop.Classify(args[0], args[1])
			return emit(cmd, struct {
				Result  cop.Result `json:"result" yaml:"result"`
				Warning string     `json:"warning,omitempty" yaml:"warning,omitempty"`
			}{Result: result, Warning: result.Warning()})
		},
	}
}

func newRailCmd(emit printer) *cobra.Command {
	var internal, urgent bool

	cmd := &cobra.Command{
		Use:   "rail <amount-pence>",
		Short: "Show which payment rail and fee an amount would use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || amount <= 0 {
				return fmt.Errorf("amount must be a positive number of pence")
			}
			selection := rails.NewSelector(config.LoadRiskConfig().Rails).Select(amount, internal, urgent)
			return emit(cmd, struct {
				Amount string          `json:"amount" yaml:"amount"`
				Rail   rails.Selection `json:"selection" yaml:"selection"`
			}{Amount: models.FormatPence(amount), Rail: selection})
		},
	}
	cmd.Flags().BoolVar(&internal, "internal", false, "destination is held at this bank")
	cmd.Flags().BoolVar(&urgent, "urgent", false, "request same-day settlement")
	return cmd
}

// PINStore persists a user's PIN hash.
type PINStore interface {
	SetPINHash(ctx context.Context, userID, hash string) error
}

type pinStoreOpener func(ctx context.Context) (PINStore, func() error, error)

// openPINStore connects with the same DATABASE_* settings as the server.
func openPINStore(ctx context.Context) (PINStore, func() error, error) {
	for _, key := range []string{"host", "port", "user", "password", "name", "ssl_mode"} {
		viper.BindEnv("database."+key, "DATABASE_"+strings.ToUpper(key))
	}
	db, err := database.InitDB(ctx)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewAccountRepository(db), db.Close, nil
}

func newHashPINCmd(open pinStoreOpener) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "hash-pin <pin>",
		Short: "Print the Argon2id hash stored in users.pin_hash, or store it with --user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			encoded, err := hsm.NewPINVault(hsm.DefaultParams).Hash(args[0])
			if err != nil {
				return err
			}
			if userID == "" {
				fmt.Fprintln(cmd.OutOrStdout(), encoded)
				return nil
			}

			store, closeStore, err := open(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to open account store: %w", err)
			}
			defer closeStore()

			if err := store.SetPINHash(cmd.Context(), userID, encoded); err != nil {
				if errors.Is(err, models.ErrNotFound) {
					return fmt.Errorf("no user %s", userID)
				}
				return fmt.Errorf("failed to store PIN for %s: %w", userID, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "PIN set for %s\n", userID)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "write the hash to this user's record instead of printing it")
	return cmd
}
