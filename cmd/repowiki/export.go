// cmd/repowiki/export.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/julianshen/repowiki/internal/wiki"
)

func exportCmd() *cobra.Command {
	var (
		formatFlag string
		outputFlag string
	)

	cmd := &cobra.Command{
		Use:   "export <repository>",
		Short: "Export a wiki as a Markdown or JSON artifact",
		Long: `Run the pipeline for the repository (served from cache when a wiki was
already generated) and bundle the pages into a single artifact file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if outputFlag != "" {
				cfg.Export.OutputDir = outputFlag
			}

			ref, err := parseRepoArg(args[0], platformFlag, tokenFlag)
			if err != nil {
				return err
			}

			stack, err := buildStack(cfg, ref)
			if err != nil {
				return err
			}
			defer stack.close()

			if _, err := runPipeline(cmd.Context(), stack, ref, buildParams(cfg, ref), false); err != nil {
				return err
			}

			path, err := stack.controller.Export(cmd.Context(), wiki.ExportFormat(formatFlag))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&formatFlag, "format", "markdown", "artifact format: markdown or json")
	cmd.Flags().StringVar(&outputFlag, "output", "", "output directory (default from config)")

	return cmd
}
