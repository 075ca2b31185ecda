package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/control-assist/internal/loader"
	"github.com/sells-group/control-assist/internal/model"
)

var suggestFlags struct {
	id          string
	title       string
	family      string
	description string
	existing    string
}

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Suggest implementation metadata for one control",
	Example: `  control-assist suggest --id AC-2 --title "Account Management"
  control-assist suggest --id SC-8 --title "Transmission Confidentiality" --existing documented.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if suggestFlags.id == "" {
			return eris.New("--id is required")
		}
		control := model.Control{
			ID:     suggestFlags.id,
			Title:  suggestFlags.title,
			Family: suggestFlags.family,
		}
		if suggestFlags.description != "" {
			control.Parts = []model.DescriptionPart{{Name: "statement", Prose: suggestFlags.description}}
		}

		existing, err := loadExistingFlag(suggestFlags.existing)
		if err != nil {
			return err
		}

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		return runSuggest(ctx, env, control, existing, cmd.OutOrStdout())
	},
}

func runSuggest(ctx context.Context, env *appEnv, control model.Control, existing []model.ExistingControl, w io.Writer) error {
	pc, err := env.Source.ProviderConfig(ctx)
	if err != nil {
		return eris.Wrap(err, "load provider config")
	}

	sug, err := env.Selector.Select(ctx, control, existing, pc)
	if err != nil {
		return err
	}
	return writeJSON(w, sug)
}

func loadExistingFlag(path string) ([]model.ExistingControl, error) {
	if path == "" {
		return nil, nil
	}
	existing, err := loader.LoadExisting(path)
	if err != nil {
		return nil, eris.Wrap(err, "load existing controls")
	}
	return existing, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONFile(path string, v any) error {
	if path == "" || path == "-" {
		return writeJSON(os.Stdout, v)
	}
	f, err := os.Create(path) //nolint:gosec // path is operator supplied
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	defer f.Close() //nolint:errcheck
	return writeJSON(f, v)
}

func init() {
	f := suggestCmd.Flags()
	f.StringVar(&suggestFlags.id, "id", "", "control identifier, e.g. AC-2")
	f.StringVar(&suggestFlags.title, "title", "", "control title")
	f.StringVar(&suggestFlags.family, "family", "", "family code (default: derived from --id)")
	f.StringVar(&suggestFlags.description, "description", "", "control statement text")
	f.StringVar(&suggestFlags.existing, "existing", "", "file of documented controls (json, csv or xlsx)")
	rootCmd.AddCommand(suggestCmd)
}
