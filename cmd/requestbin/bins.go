package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"requestbin/internal/format"
	"requestbin/internal/web"
)

var (
	createPrivate  bool
	createName     string
	inspectVerbose bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a bin in the configured store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := web.ValidateCreateBin(web.CreateBinRequest{Private: createPrivate, Name: createName}); err != nil {
			return err
		}
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openPersistent(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		b, err := store.CreateBin(createPrivate, createName)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		format.PrintBin(out, b, false)
		if b.Private {
			fmt.Fprintf(out, "secret: %s\n", hex.EncodeToString(b.SecretKey))
		}
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <bin>",
	Short: "Print a bin and its captured requests",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openPersistent(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		b, err := store.LookupBin(args[0])
		if err != nil {
			return err
		}
		format.PrintBin(cmd.OutOrStdout(), b, inspectVerbose)
		return nil
	},
}

var curlCmd = &cobra.Command{
	Use:   "curl <bin> <request-id>",
	Short: "Print a curl command reproducing a captured request",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		store, err := openPersistent(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		b, err := store.LookupBin(args[0])
		if err != nil {
			return err
		}
		r, ok := b.Request(args[1])
		if !ok {
			return fmt.Errorf("request %s not found in bin %s", args[1], args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), r.ToCurl())
		return nil
	},
}

func init() {
	createCmd.Flags().BoolVarP(&createPrivate, "private", "p", false, "create a private bin")
	createCmd.Flags().StringVarP(&createName, "name", "n", "", "custom bin name")
	inspectCmd.Flags().BoolVarP(&inspectVerbose, "verbose", "v", false, "show request headers")

	rootCmd.AddCommand(createCmd, inspectCmd, curlCmd)
}
