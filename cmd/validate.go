package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joescharf/techscore/internal/output"
	"github.com/joescharf/techscore/internal/score"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a submission offline without sending it",
	Long: `Build the submission from flags or --from-file, show it as a table,
and report any missing required fields. No request is made.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateRun(cmd)
	},
}

func init() {
	addFieldFlags(validateCmd)
	rootCmd.AddCommand(validateCmd)
}

func validateRun(cmd *cobra.Command) error {
	data, err := buildData(cmd)
	if err != nil {
		return err
	}
	if err := printSummary(data); err != nil {
		return err
	}
	fmt.Fprintln(ui.Out)

	if err := checkData(data); err != nil {
		return err
	}
	ui.Success("All %d required fields present", len(score.Fields))
	return nil
}

// printSummary renders the submission as a Field/Value table. Missing keys
// are left out; checkData lists them. Keys outside the required set
// (possible with --from-file) are listed after the required ones.
func printSummary(data score.Data) error {
	table := ui.Table([]string{"Field", "Value"})

	for _, f := range score.Fields {
		v, ok := data[f.Key]
		if !ok {
			continue
		}
		table.Append([]string{f.Key, formatValue(f, v)})
	}

	required := make(map[string]bool, len(score.Fields))
	for _, k := range score.RequiredKeys() {
		required[k] = true
	}
	var extra []string
	for k := range data {
		if !required[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		table.Append([]string{k, fmt.Sprint(data[k])})
	}

	return table.Render()
}

func formatValue(f score.Field, v any) string {
	if f.Kind == score.KindFloat {
		if n, ok := toFloat(v); ok {
			return output.ScoreColor(n)
		}
		return fmt.Sprint(v)
	}
	if f.Key == "globalLevel" {
		return output.LevelColor(fmt.Sprint(v))
	}
	return fmt.Sprint(v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
