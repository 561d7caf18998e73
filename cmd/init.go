package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smartxdr/core/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long:  `Writes a smartxdr.yml with documented defaults to the path given by --config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(cfgFile); err == nil {
			return fmt.Errorf("%s already exists, not overwriting", cfgFile)
		}
		cfg := config.DefaultConfig()
		if err := cfg.Save(cfgFile); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", cfgFile)
		fmt.Println("Set OPENAI_API_KEY (or the key for your provider) before running `smartxdr serve`.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
