package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/control-assist/pkg/ollama"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect text-generation providers",
}

var providersModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models available on the local inference server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		baseURL := cfg.Provider.Local.BaseURL
		models, err := listLocalModels(cmd.Context(), baseURL)
		if err != nil {
			return eris.Wrapf(err, "list models at %s (is `ollama serve` running?)", baseURL)
		}
		formatModels(cmd.OutOrStdout(), models, cfg.Provider.Local.Model)
		return nil
	},
}

func formatModels(w io.Writer, models []ollama.Model, configured string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFAMILY\tPARAMETERS\tQUANTIZATION\tSIZE\tCONFIGURED")
	found := false
	for _, m := range models {
		mark := ""
		if m.Name == configured || m.Name == configured+":latest" {
			mark = "*"
			found = true
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.1f GB\t%s\n",
			m.Name, m.Details.Family, m.Details.ParameterSize, m.Details.QuantizationLevel,
			float64(m.Size)/1e9, mark)
	}
	tw.Flush() //nolint:errcheck
	if !found && configured != "" {
		fmt.Fprintf(w, "\nconfigured model %q is not installed; run `ollama pull %s`\n", configured, configured)
	}
}

func init() {
	providersCmd.AddCommand(providersModelsCmd)
	rootCmd.AddCommand(providersCmd)
}
