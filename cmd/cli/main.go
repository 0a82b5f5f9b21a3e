package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"labstats/adapters/datareadiness/coercer"
	"labstats/adapters/excel"
	"labstats/internal/analysis"
	apperrors "labstats/internal/errors"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "labstats-cli",
		Short:         "Run group comparisons on a CSV or spreadsheet from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newDescribeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		if appErr, ok := apperrors.As(err); ok {
			writeJSON(os.Stdout, appErr.Payload(), true)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

type columnFlags struct {
	group  string
	value  string
	sheet  string
	pretty bool
}

func (f *columnFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.group, "group", "", "Grouping column")
	cmd.Flags().StringVar(&f.value, "value", "", "Numeric outcome column")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "Spreadsheet tab (default: first sheet)")
	cmd.Flags().BoolVar(&f.pretty, "pretty", true, "Indent JSON output")
}

func (f *columnFlags) loader() *analysis.Loader {
	cfg := excel.DefaultReaderConfig()
	cfg.Sheet = f.sheet
	return analysis.NewLoader(excel.NewDataReader(cfg), coercer.NewTypeCoercer(coercer.DefaultCoercionConfig()))
}

func newRunCmd() *cobra.Command {
	var flags columnFlags
	var test string

	cmd := &cobra.Command{
		Use:   "run [data-file]",
		Short: "Run ttest, anova or kruskal and print the JSON report",
		Long: `Run one group comparison and print the same JSON the /run_stats endpoint returns.

Example: labstats-cli run weights.csv --group treatment --value weight_g --test anova`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readFile(args[0])
			if err != nil {
				return err
			}
			pipeline := analysis.NewPipeline(flags.loader(), nil, nil)
			report, err := pipeline.Run(analysis.Request{
				Filename: filepath.Base(args[0]),
				Payload:  payload,
				Group:    flags.group,
				Value:    flags.value,
				Test:     test,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report.Payload(), flags.pretty)
		},
	}

	flags.bind(cmd)
	cmd.Flags().StringVar(&test, "test", "", "Test to run: ttest|anova|kruskal")
	return cmd
}

func newDescribeCmd() *cobra.Command {
	var flags columnFlags

	cmd := &cobra.Command{
		Use:   "describe [data-file]",
		Short: "Print per-group descriptives without running a test",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readFile(args[0])
			if err != nil {
				return err
			}
			cleaned, err := flags.loader().Load(filepath.Base(args[0]), payload, flags.group, flags.value)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"ok":           true,
				"groups":       cleaned.Groups,
				"n_by_group":   cleaned.Counts,
				"descriptives": analysis.Describe(cleaned),
			}, flags.pretty)
		},
	}

	flags.bind(cmd)
	return cmd
}

func readFile(path string) ([]byte, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return payload, nil
}

func writeJSON(w io.Writer, v interface{}, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
