package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

type configFile struct {
	Storage storageConfig `toml:"storage"`
}

type storageConfig struct {
	Dir          string `toml:"dir"`
	RolesPath    string `toml:"roles_path"`
	WorkDir      string `toml:"work_dir"`
	SessionsPath string `toml:"sessions_path"`
}

// newInitCmd writes a default config.toml under ~/.swarmops so the storage
// paths are explicit and editable.
func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("resolve home directory: %w", err)
			}

			configDir := filepath.Join(homeDir, ".swarmops")
			configPath := filepath.Join(configDir, "config.toml")

			if !force {
				if _, err := os.Stat(configPath); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
				} else if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("check config file: %w", err)
				}
			}

			data, err := toml.Marshal(configFile{
				Storage: storageConfig{
					Dir:          configDir,
					RolesPath:    filepath.Join(configDir, "roles.json"),
					WorkDir:      filepath.Join(configDir, "work"),
					SessionsPath: filepath.Join(configDir, "sessions", "active.json"),
				},
			})
			if err != nil {
				return fmt.Errorf("encode config file: %w", err)
			}

			if err := os.MkdirAll(configDir, 0o700); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := os.WriteFile(configPath, data, 0o600); err != nil {
				return fmt.Errorf("write config file: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	return cmd
}
