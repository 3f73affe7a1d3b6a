package setup

import (
	"fmt"
	"os"
	"path/filepath"

	"eddy/internal/config"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

var force bool

var Cmd = &cobra.Command{
	Use:   "setup",
	Short: "Write a starter config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.Path()
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()

		if err := toml.NewEncoder(f).Encode(config.Default()); err != nil {
			return err
		}

		fmt.Println("wrote", path)
		return nil
	},
}

func init() {
	Cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
}
