// cmd/repowiki/main.go
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/julianshen/repowiki/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	configPath      string
	serverFlag      string
	providerFlag    string
	modelFlag       string
	languageFlag    string
	comprehensiveF  bool
	concurrencyFlag int
	platformFlag    string
	tokenFlag       string
)

func versionString() string {
	return fmt.Sprintf("repowiki %s (commit: %s, built: %s)", version, commit, date)
}

func main() {
	// Tokens and overrides may live in a local .env; absence is fine.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "repowiki",
		Short: "Generate a documentation wiki for a repository",
		Long: `repowiki — generate a documentation wiki for a GitHub, GitLab,
Bitbucket, or local repository via the generation backend.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "override generation backend base URL")
	rootCmd.PersistentFlags().StringVar(&providerFlag, "provider", "", "override model provider")
	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", "", "override model name")
	rootCmd.PersistentFlags().StringVar(&languageFlag, "language", "", "wiki language code (e.g. en, ja)")
	rootCmd.PersistentFlags().BoolVar(&comprehensiveF, "comprehensive", false, "plan a sectioned, comprehensive wiki")
	rootCmd.PersistentFlags().IntVar(&concurrencyFlag, "concurrency", 0, "max parallel page generations (0 = config default)")
	rootCmd.PersistentFlags().StringVar(&platformFlag, "platform", "", "repository platform when not inferable: github, gitlab, bitbucket, local")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "access token for private repositories")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(versionString())
		},
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(showCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the TOML config and layers CLI flag overrides on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if serverFlag != "" {
		cfg.Server.BaseURL = serverFlag
	}
	if providerFlag != "" {
		cfg.Generator.Provider = providerFlag
	}
	if modelFlag != "" {
		cfg.Generator.Model = modelFlag
	}
	if languageFlag != "" {
		cfg.Generator.Language = languageFlag
	}
	if comprehensiveF {
		cfg.Generator.Comprehensive = true
	}
	if concurrencyFlag > 0 {
		cfg.Generator.MaxConcurrency = concurrencyFlag
	}
	return cfg, nil
}
