package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/techscore/internal/score"
	"github.com/joescharf/techscore/internal/submit"
)

// addFieldFlags registers one flag per submission field plus --from-file.
func addFieldFlags(cmd *cobra.Command) {
	for _, f := range score.Fields {
		switch f.Kind {
		case score.KindFloat:
			cmd.Flags().Float64(f.Flag, 0, f.Usage)
		default:
			cmd.Flags().String(f.Flag, "", f.Usage)
		}
	}
	cmd.Flags().String("from-file", "", "Read all fields from a JSON file; individual field flags are ignored")
}

// collectValues returns the field flags the operator set. Submitter and
// business line fall back to configured defaults.
func collectValues(cmd *cobra.Command) *score.Values {
	v := score.NewValues()
	for _, f := range score.Fields {
		if !cmd.Flags().Changed(f.Flag) {
			continue
		}
		switch f.Kind {
		case score.KindFloat:
			n, _ := cmd.Flags().GetFloat64(f.Flag)
			v.Floats[f.Flag] = n
		default:
			s, _ := cmd.Flags().GetString(f.Flag)
			v.Strings[f.Flag] = s
		}
	}

	defaults := map[string]string{
		"submitter":     viper.GetString("submitter"),
		"business-line": viper.GetString("business_line"),
	}
	for flag, val := range defaults {
		if _, ok := v.Strings[flag]; !ok && val != "" {
			v.Strings[flag] = val
			ui.VerboseLog("Using configured %s: %s", flag, val)
		}
	}
	return v
}

// buildData produces the submission from --from-file or the field flags.
func buildData(cmd *cobra.Command) (score.Data, error) {
	path, _ := cmd.Flags().GetString("from-file")
	if path == "" {
		return score.Build(collectValues(cmd)), nil
	}

	var ignored []string
	for _, f := range score.Fields {
		if cmd.Flags().Changed(f.Flag) {
			ignored = append(ignored, "--"+f.Flag)
		}
	}
	if len(ignored) > 0 {
		ui.Warning("--from-file is set; ignoring %s", strings.Join(ignored, ", "))
	}

	ui.VerboseLog("Loading fields from %s", path)
	data, err := score.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// checkData reports every missing required field once and returns an error
// when the submission is incomplete.
func checkData(data score.Data) error {
	missing := score.Validate(data)
	if len(missing) == 0 {
		return nil
	}

	ui.Error("Missing required fields:")
	for _, key := range missing {
		fmt.Fprintf(ui.ErrOut, "  - %s\n", key)
	}
	fmt.Fprintln(ui.ErrOut)
	fmt.Fprintln(ui.ErrOut, "Provide them with command-line flags or a JSON file (--from-file).")
	return fmt.Errorf("validation failed: %d of %d required fields missing", len(missing), len(score.Fields))
}

func submitRun(cmd *cobra.Command) error {
	baseURL := viper.GetString("url")
	if baseURL == "" {
		return fmt.Errorf(`required flag "url" not set`)
	}

	data, err := buildData(cmd)
	if err != nil {
		return err
	}
	if err := checkData(data); err != nil {
		return err
	}

	endpoint := score.Endpoint(baseURL)
	client := newSubmitClient()

	ui.Info("Sending request to: %s", endpoint)
	ui.VerboseLog("Timeout: %s", client.Timeout())
	if ui.Verbose {
		if err := printSummary(data); err != nil {
			return err
		}
	}
	fmt.Fprintln(ui.Out, "Request data:")
	if err := ui.JSON(data); err != nil {
		return fmt.Errorf("render request: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would POST %d fields to %s", len(data), endpoint)
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := client.Submit(ctx, endpoint, data)
	if err != nil {
		reportSubmitError(err, endpoint)
		return err
	}

	ui.VerboseLog("Request ID: %s", res.RequestID)
	ui.VerboseLog("Elapsed: %s", res.Elapsed)

	fmt.Fprintln(ui.Out)
	fmt.Fprintf(ui.Out, "Response status code: %d\n", res.StatusCode)
	fmt.Fprintln(ui.Out, "Response body:")
	if err := ui.JSON(res.Body); err != nil {
		return fmt.Errorf("render response: %w", err)
	}
	fmt.Fprintln(ui.Out)

	// A rejected submission is reported but does not fail the run.
	if res.OK() {
		ui.Success("Request succeeded")
	} else {
		ui.Error("Request failed, status code: %d", res.StatusCode)
	}
	return nil
}

// reportSubmitError prints the operator-facing diagnostics for a failed delivery.
func reportSubmitError(err error, endpoint string) {
	var rfe *submit.ResponseFormatError
	switch {
	case errors.Is(err, submit.ErrConnection):
		ui.Error("Cannot connect to server %s", endpoint)
		fmt.Fprintln(ui.ErrOut, "Please check:")
		fmt.Fprintln(ui.ErrOut, "  1. the server address is correct")
		fmt.Fprintln(ui.ErrOut, "  2. the server is running")
		fmt.Fprintln(ui.ErrOut, "  3. the network connection is working")
	case errors.Is(err, submit.ErrTimeout):
		ui.Error("Request timed out")
	case errors.As(err, &rfe):
		ui.Error("Response is not valid JSON")
		fmt.Fprintf(ui.ErrOut, "Raw response:\n%s\n", rfe.Raw)
	}
}
