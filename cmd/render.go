package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/chartloom-cli/internal/render"
	"github.com/KaramelBytes/chartloom-cli/internal/utils"
)

var (
	renData     datasetFlags
	renOutDir   string
	renHTMLPath string
	renPalette  string
	renWidth    int
	renHeight   int
	renQuiet    bool
)

var renderCmd = &cobra.Command{
	Use:   "render <file> <specs.json|specs.yaml>",
	Short: "Render a spec file against a dataset as SVG charts",
	Long: `Render normalizes every spec in the file against the dataset and draws it.
Specs that cannot be drawn produce a placeholder image carrying the reason.`,
	Args: cobra.ExactArgs(2),
	Example: `  chartloom render sales.csv charts/specs.json --out charts/
  chartloom render sales.csv specs.yaml --html report.html`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if renOutDir == "" && renHTMLPath == "" {
			return fmt.Errorf("--out or --html is required")
		}
		t, specs, err := loadAndNormalize(args[0], args[1], &renData, renPalette)
		if err != nil {
			return err
		}
		o := render.Options{Palette: renPalette, Width: renWidth, Height: renHeight}
		if cfg != nil {
			if o.Palette == "" {
				o.Palette = cfg.Palette
			}
			o.DefaultColor = cfg.DefaultColor
		}
		images := render.RenderAll(specs, t, o)
		return writeArtifacts(os.Stdout, images, artifactOptions{
			Dir:      renOutDir,
			HTMLPath: renHTMLPath,
			Quiet:    renQuiet,
			Report: render.Report{
				Title:   "Charts for " + filepath.Base(args[0]),
				Dataset: filepath.Base(args[0]),
				Source:  filepath.Base(args[1]),
			},
		})
	},
}

type artifactOptions struct {
	Dir      string
	HTMLPath string
	Quiet    bool
	Report   render.Report
}

// writeArtifacts saves SVG images under Dir and the HTML report to HTMLPath.
func writeArtifacts(w io.Writer, images []render.Image, o artifactOptions) error {
	if o.Dir != "" {
		if err := render.WriteImages(o.Dir, images); err != nil {
			return err
		}
		if !o.Quiet {
			for _, img := range images {
				mark := "✓"
				if !img.Spec.Valid() {
					mark = "⚠"
				}
				fmt.Fprintf(w, "%s %s\n", mark, img.Path)
			}
		}
	}
	if o.HTMLPath == "" {
		return nil
	}
	rep := o.Report
	rep.Images = images
	b, err := rep.HTML()
	if err != nil {
		return err
	}
	if err := utils.SafeWriteFile(o.HTMLPath, b); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if !o.Quiet {
		fmt.Fprintf(w, "✓ Wrote report to %s\n", o.HTMLPath)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renData.register(renderCmd)
	renderCmd.Flags().StringVar(&renOutDir, "out", "", "directory for the SVG charts")
	renderCmd.Flags().StringVar(&renHTMLPath, "html", "", "write an HTML report with the rendered charts")
	renderCmd.Flags().StringVar(&renPalette, "palette", "", "palette for specs that name none")
	renderCmd.Flags().IntVar(&renWidth, "width", 0, "image width in pixels (default 800)")
	renderCmd.Flags().IntVar(&renHeight, "height", 0, "image height in pixels (default 500)")
	renderCmd.Flags().BoolVar(&renQuiet, "quiet", false, "suppress non-essential output")
}
