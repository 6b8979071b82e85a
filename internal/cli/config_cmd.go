package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/alanmeadows/termbridge/internal/config"
	"github.com/alanmeadows/termbridge/internal/secrets"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/tidwall/jsonc"
	"github.com/tidwall/sjson"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage termbridge configuration",
	Long:  `Show and modify termbridge configuration values.`,
}

var (
	configJSONFlag bool
	configUserFlag bool
)

func init() {
	configShowCmd.Flags().BoolVar(&configJSONFlag, "json", false, "Output raw JSON without formatting")
	configSetCmd.Flags().BoolVar(&configUserFlag, "user", false, "Write the user config instead of the project config")
	configInitCmd.Flags().BoolVar(&configUserFlag, "user", false, "Write the user config instead of the project config")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show merged configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		redacted := redactConfig(appConfig)

		var data []byte
		var err error
		if configJSONFlag {
			data, err = json.Marshal(redacted)
		} else {
			data, err = json.MarshalIndent(redacted, "", "  ")
		}
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

// redactConfig returns a copy of the config with the token masked.
func redactConfig(cfg *config.Config) *config.Config {
	copy := *cfg
	if copy.Server.Token != "" {
		copy.Server.Token = "***"
	}
	return &copy
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Long: `Set a configuration value using a dotted key path.

The value is written to .termbridge/termbridge.jsonc in the repository
root, or to the user config with --user or outside a git repository.
The file is created if it does not exist.

Note: JSONC comments are not preserved on write.

Examples:
  termbridge config set server.port 8086
  termbridge config set session.queue reject
  termbridge config set --user server.token_file ~/.obsidian_termux_token`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		value := parseValue(args[1])

		path, err := writableConfigPath()
		if err != nil {
			return err
		}
		if err := setConfigValues(path, map[string]any{key: value}); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, value)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config interactively",
	Long: `Ask for the agent address and token and write them to the config.

The token is stored in the OS keyring, not in the config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		host := appConfig.Server.Host
		port := strconv.Itoa(int(appConfig.Server.Port))
		queue := appConfig.Session.Queue
		var token string

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Agent host").
					Value(&host),
				huh.NewInput().
					Title("Agent port").
					Value(&port).
					Validate(func(s string) error {
						n, err := strconv.Atoi(s)
						if err != nil || n < 1 || n > 65535 {
							return fmt.Errorf("port must be a number between 1 and 65535")
						}
						return nil
					}),
				huh.NewInput().
					Title("Agent token (leave empty to keep the current one)").
					EchoMode(huh.EchoModePassword).
					Value(&token),
				huh.NewSelect[string]().
					Title("When a command is typed while another runs").
					Options(
						huh.NewOption("Wait for it (recommended)", "queue"),
						huh.NewOption("Refuse the new command", "reject"),
						huh.NewOption("Send both at once", "concurrent"),
					).
					Value(&queue),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("form cancelled: %w", err)
		}

		path, err := writableConfigPath()
		if err != nil {
			return err
		}
		portNum, _ := strconv.Atoi(port)
		if err := setConfigValues(path, map[string]any{
			"server.host":   host,
			"server.port":   portNum,
			"session.queue": queue,
		}); err != nil {
			return err
		}

		if token != "" {
			if err := secrets.NewKeyring().SetToken(token); err != nil {
				return err
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

// parseValue types a command-line value: bool, then number, then string.
func parseValue(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

func writableConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	if !configUserFlag {
		if p := config.ProjectConfigPath(); p != "" {
			return p, nil
		}
	}
	if p := config.UserConfigPath(); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("cannot determine a config path; use --config")
}

// setConfigValues applies dotted-key updates to the JSONC file at path.
func setConfigValues(path string, values map[string]any) error {
	existing := []byte("{}")
	if data, err := os.ReadFile(path); err == nil {
		// sjson needs plain JSON; comments are dropped.
		existing = jsonc.ToJSON(data)
	}

	var err error
	for key, value := range values {
		existing, err = sjson.SetBytes(existing, key, value)
		if err != nil {
			return fmt.Errorf("setting key %q: %w", key, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, existing, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
