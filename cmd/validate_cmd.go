package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fabrica/fabrica/internal/schema"
	"github.com/fabrica/fabrica/internal/validate"
)

var (
	validateStrict   bool
	validateNoNaming bool
	validateMaxDepth int
)

var validateCmd = &cobra.Command{
	Use:   "validate <schemas.yaml>",
	Short: "Validate entity schemas",
	Long: `Check entity schemas for reference integrity, template placeholders,
constraint sanity and circular dependencies. Warnings do not fail
validation unless --strict is set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := setupLogger(cfg)
		if err != nil {
			return fmt.Errorf("setting up logging: %w", err)
		}

		set, err := schema.LoadYAML(args[0])
		if err != nil {
			return fmt.Errorf("loading schemas: %w", err)
		}

		v := &validate.Validator{
			Strict:          validateStrict || cfg.Generation.Strict,
			MaxChainDepth:   validateMaxDepth,
			DisableNaming:   validateNoNaming,
			TemplateBaseDir: filepath.Dir(args[0]),
			Logger:          logger,
		}
		report, err := v.Validate(cmd.Context(), set)
		if report != nil {
			fmt.Println(report.Summary())
		}
		if err != nil {
			cmd.SilenceErrors = true
			return err
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "treat warnings as errors")
	validateCmd.Flags().BoolVar(&validateNoNaming, "no-naming-check", false, "skip foreign-key naming convention warnings")
	validateCmd.Flags().IntVar(&validateMaxDepth, "max-depth", 0, "dependency chain depth that triggers a warning (default 10)")
	rootCmd.AddCommand(validateCmd)
}
