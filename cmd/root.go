package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "smartxdr",
	Short: "AI assistant core for security operations",
	Long: `SmartXDR is the assistant core for a security operations platform:
a RAG knowledge base over playbooks and threat intel, AI-driven IOC
enrichment against case management, and triage summaries of ML-classified
alerts from the log store.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "smartxdr.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
