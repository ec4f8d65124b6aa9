package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ktwhotel/concierge/internal/config"
)

// secretKeys are the env names `config set-key` accepts.
var secretKeys = map[string]bool{
	"CHANNEL_SECRET":       true,
	"CHANNEL_ACCESS_TOKEN": true,
	"GOOGLE_API_KEY":       true,
	"CWA_API_KEY":          true,
	"MAIL_ARCHIVE_TOKEN":   true,
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(newConfigCheckCmd())
	cmd.AddCommand(newConfigSetKeyCmd())
	return cmd
}

func newConfigCheckCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the config file and report which secrets are set",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Config OK: tenant %q, hotel %q\n", cfg.TenantID, cfg.Hotel.Name)

			secrets := config.LoadSecrets()
			set := map[string]bool{
				"CHANNEL_SECRET":       secrets.ChannelSecret != "",
				"CHANNEL_ACCESS_TOKEN": secrets.AccessToken != "",
				"GOOGLE_API_KEY":       secrets.LLMKey != "",
				"CWA_API_KEY":          secrets.WeatherKey != "",
				"MAIL_ARCHIVE_TOKEN":   secrets.MailToken != "",
			}
			var names []string
			for name := range set {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				mark := "missing"
				if set[name] {
					mark = "set"
				}
				fmt.Fprintf(out, "  %-22s %s\n", name, mark)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	return cmd
}

func newConfigSetKeyCmd() *cobra.Command {
	var envPath string

	cmd := &cobra.Command{
		Use:   "set-key <name>",
		Short: "Store a secret in the .env file",
		Long:  "Prompts for the value without echoing it and writes NAME=value into the .env file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.ToUpper(args[0])
			if !secretKeys[name] {
				var names []string
				for k := range secretKeys {
					names = append(names, k)
				}
				sort.Strings(names)
				return fmt.Errorf("config: unknown key %q; valid keys: %s", name, strings.Join(names, ", "))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Value for %s: ", name)
			value, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Fprintln(cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("config: read value: %w", err)
			}
			if len(value) == 0 {
				return fmt.Errorf("config: empty value")
			}

			if err := upsertEnv(envPath, name, string(value)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s written to %s\n", name, envPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&envPath, "env-file", ".env", "path to the env file")
	return cmd
}

// upsertEnv rewrites the env file with the key set, preserving other lines.
func upsertEnv(path, name, value string) error {
	var lines []string
	if data, err := os.ReadFile(path); err == nil {
		lines = strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	}

	entry := name + "=" + value
	replaced := false
	for i, line := range lines {
		if strings.HasPrefix(line, name+"=") {
			lines[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		lines = append(lines, entry)
	}

	out := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(out), 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
