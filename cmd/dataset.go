package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/chartloom-cli/internal/analysis"
)

// datasetFlags are the loader options shared by every command that reads a dataset.
type datasetFlags struct {
	delimiter    string
	decimal      string
	thousands    string
	sheet        string
	maxRows      int
	dropConstant bool
}

func (d *datasetFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&d.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (default by extension)")
	f.StringVar(&d.decimal, "decimal", "", "decimal separator: '.' | 'comma' (default auto)")
	f.StringVar(&d.thousands, "thousands", "", "thousands separator: ',' | '.' | 'space'")
	f.StringVar(&d.sheet, "sheet", "", "XLSX sheet name (default first sheet)")
	f.IntVar(&d.maxRows, "max-rows", 0, "limit rows read from the dataset (0 = default)")
	f.BoolVar(&d.dropConstant, "drop-constant", false, "drop columns holding a single distinct value")
}

func (d *datasetFlags) options() (analysis.LoadOptions, error) {
	opt := analysis.DefaultLoadOptions()
	if d.maxRows > 0 {
		opt.MaxRows = d.maxRows
	}
	switch d.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", d.delimiter)
	}
	switch strings.ToLower(strings.TrimSpace(d.decimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", d.decimal)
	}
	switch strings.ToLower(strings.TrimSpace(d.thousands)) {
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", d.thousands)
	}
	opt.Sheet = d.sheet
	opt.DropConstant = d.dropConstant
	return opt, nil
}

func (d *datasetFlags) load(path string) (*analysis.Table, error) {
	opt, err := d.options()
	if err != nil {
		return nil, err
	}
	t, err := analysis.Load(path, opt)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	return t, nil
}
