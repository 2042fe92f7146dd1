package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/chartloom-cli/internal/analysis"
	"github.com/KaramelBytes/chartloom-cli/internal/utils"
)

var (
	descData       datasetFlags
	descOutputPath string
	descSampleRows int
	descTopValues  int
	descCorr       bool
	descOutliers   bool
	descOutlierThr float64
)

var describeCmd = &cobra.Command{
	Use:   "describe <file>",
	Short: "Print the dataset descriptor sent to the model",
	Args:  cobra.ExactArgs(1),
	Example: `  chartloom describe sales.csv
  chartloom describe sales.xlsx --sheet Q3 --output sales.summary.md`,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := descData.load(args[0])
		if err != nil {
			return err
		}
		opt := analysis.DefaultDescribeOptions()
		if descSampleRows > 0 {
			opt.SampleRows = descSampleRows
		}
		if descTopValues > 0 {
			opt.TopValues = descTopValues
		}
		if cmd.Flags().Changed("corr") {
			opt.Correlations = descCorr
		}
		if cmd.Flags().Changed("outliers") {
			opt.Outliers = descOutliers
		}
		if descOutlierThr > 0 {
			opt.OutlierThreshold = descOutlierThr
		}
		rep := analysis.Describe(t, opt)

		out := []byte(rep.Markdown())
		if descOutputPath == "" {
			_, err := os.Stdout.Write(out)
			return err
		}
		if err := utils.SafeWriteFile(descOutputPath, out); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Printf("✓ Wrote descriptor to %s\n", descOutputPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
	descData.register(describeCmd)
	describeCmd.Flags().StringVar(&descOutputPath, "output", "", "write the descriptor to a file instead of stdout")
	describeCmd.Flags().IntVar(&descSampleRows, "sample-rows", 0, "number of sample rows to include")
	describeCmd.Flags().IntVar(&descTopValues, "top-values", 0, "categorical values listed per column")
	describeCmd.Flags().BoolVar(&descCorr, "corr", true, "include numeric correlations")
	describeCmd.Flags().BoolVar(&descOutliers, "outliers", true, "count robust z-score outliers")
	describeCmd.Flags().Float64Var(&descOutlierThr, "outlier-threshold", 0, "robust z-score threshold (default 3.5)")
}
