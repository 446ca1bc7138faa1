package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	insider "github.com/RxDataLab/go-insider"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insiderlookup <ticker>",
		Short: "Look up recent SEC insider transactions for a ticker",
		Long: `insiderlookup resolves a ticker to its SEC CIK, fetches the most
recent Form 3/4/5 filings, and prints a normalized transaction ledger
with an aggregate buy/sell summary as JSON.

SEC requires an identifying contact email on every request; provide it
with --email, INSIDER_EMAIL, or SEC_EMAIL.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringP("email", "e", "", "Contact email for the SEC User-Agent header")
	flags.String("db", "", "Path to the SQLite lookup cache (empty disables the persisted tier)")
	flags.Int("max-filings", insider.DefaultMaxFilings, "Maximum filings to fetch per lookup")
	flags.Duration("timeout", 2*time.Minute, "Overall lookup deadline")

	viper.SetEnvPrefix("INSIDER")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("email", flags.Lookup("email"))
	_ = viper.BindPFlag("db", flags.Lookup("db"))
	_ = viper.BindPFlag("max_filings", flags.Lookup("max-filings"))
	_ = viper.BindPFlag("timeout", flags.Lookup("timeout"))

	return cmd
}

func run(ctx context.Context, ticker string) error {
	email := viper.GetString("email")
	if email == "" {
		var err error
		email, err = insider.GetSecEmail()
		if err != nil {
			return err
		}
	}

	client, err := insider.NewClient(email)
	if err != nil {
		return err
	}

	var store insider.Store
	if path := viper.GetString("db"); path != "" {
		store, err = insider.OpenSQLiteStore(path, insider.DefaultStoreTTL)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	service := insider.NewService(client, store, insider.Config{
		MaxFilings: viper.GetInt("max_filings"),
	})

	ctx, cancel := context.WithTimeout(ctx, viper.GetDuration("timeout"))
	defer cancel()

	result, err := service.Lookup(ctx, ticker)
	if errors.Is(err, insider.ErrTickerNotFound) {
		fmt.Fprintf(os.Stderr, "No insider data available for %s\n", ticker)
		return nil
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
