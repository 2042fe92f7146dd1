package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/chartloom-cli/internal/analysis"
	"github.com/KaramelBytes/chartloom-cli/internal/chart"
)

var (
	valData    datasetFlags
	valFormat  string
	valOutput  string
	valPalette string
	valStrict  bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <file> <specs.json|specs.yaml>",
	Short: "Normalize a spec file against a dataset and report invalid specs",
	Args:  cobra.ExactArgs(2),
	Example: `  chartloom validate sales.csv specs.json
  chartloom validate sales.csv specs.yaml --format yaml --output fixed.yaml
  chartloom validate sales.csv specs.json --strict`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, specs, err := loadAndNormalize(args[0], args[1], &valData, valPalette)
		if err != nil {
			return err
		}
		invalid := 0
		for _, s := range specs {
			if !s.Valid() {
				invalid++
			}
		}
		if valOutput != "" || valFormat != "" {
			if err := writeOutput(specs, outputOptions{Format: valFormat, OutputPath: valOutput, Writer: os.Stdout}); err != nil {
				return err
			}
		} else {
			printSpecs(os.Stdout, specs)
		}
		fmt.Fprintf(os.Stderr, "%d specs, %d invalid\n", len(specs), invalid)
		if valStrict && invalid > 0 {
			return fmt.Errorf("%d of %d specs are invalid", invalid, len(specs))
		}
		return nil
	},
}

// loadAndNormalize reads the dataset and spec file, then normalizes every
// spec leniently so invalid ones are kept with a reason.
func loadAndNormalize(dataPath, specPath string, df *datasetFlags, palette string) (*analysis.Table, []chart.Spec, error) {
	t, err := df.load(dataPath)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(specPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read spec file: %w", err)
	}
	cands, err := chart.ReadSpecs(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", specPath, err)
	}
	cc := chart.DefaultConfig()
	if cfg != nil {
		if cc, err = cfg.ChartConfig(); err != nil {
			return nil, nil, err
		}
	}
	if palette != "" {
		cc.Palette = strings.ToLower(palette)
	}
	// Stored type restrictions apply to generation only.
	cc.AllowedTypes = nil
	return t, chart.NewNormalizer(t, cc).NormalizeAll(cands), nil
}

func init() {
	rootCmd.AddCommand(validateCmd)
	valData.register(validateCmd)
	validateCmd.Flags().StringVar(&valFormat, "format", "", "emit normalized specs as json|yaml instead of a listing")
	validateCmd.Flags().StringVar(&valOutput, "output", "", "write normalized specs to a file")
	validateCmd.Flags().StringVar(&valPalette, "palette", "", "palette for specs that name none")
	validateCmd.Flags().BoolVar(&valStrict, "strict", false, "exit with an error when any spec is invalid")
}
