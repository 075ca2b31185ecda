package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/control-assist/internal/batch"
	"github.com/sells-group/control-assist/internal/loader"
	"github.com/sells-group/control-assist/internal/model"
)

var batchFlags struct {
	input    string
	existing string
	output   string
	limit    int
	delay    time.Duration
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Suggest implementation metadata for a file of controls",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if batchFlags.input == "" {
			return eris.New("--input is required")
		}
		controls, err := loader.LoadControls(batchFlags.input)
		if err != nil {
			return eris.Wrap(err, "load controls")
		}
		existing, err := loadExistingFlag(batchFlags.existing)
		if err != nil {
			return err
		}
		if batchFlags.existing == "" {
			// Documented controls in the input double as reference data.
			existing = loader.ToExisting(controls)
		}

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		runner := env.Runner
		if cmd.Flags().Changed("delay") {
			runner = batch.NewRunner(env.Selector, env.Source, batch.WithDelay(batchFlags.delay))
		}

		out := processBatch(ctx, runner, controls, existing, batchFlags.limit)
		return writeJSONFile(batchFlags.output, out)
	},
}

// batchOutput is the JSON document written by the batch command.
type batchOutput struct {
	Summary batch.Summary  `json:"summary"`
	Results []batch.Result `json:"results"`
}

// processBatch applies limit, then runs the controls sequentially.
func processBatch(ctx context.Context, runner *batch.Runner, controls []model.Control, existing []model.ExistingControl, limit int) batchOutput {
	if limit > 0 && len(controls) > limit {
		controls = controls[:limit]
	}

	zap.L().Info("processing batch",
		zap.Int("controls", len(controls)),
		zap.Int("existing", len(existing)),
	)

	results := runner.Run(ctx, controls, existing)
	return batchOutput{Summary: batch.Summarize(results), Results: results}
}

func init() {
	f := batchCmd.Flags()
	f.StringVar(&batchFlags.input, "input", "", "controls file (json, csv or xlsx)")
	f.StringVar(&batchFlags.existing, "existing", "", "documented controls file (default: documented rows of --input)")
	f.StringVar(&batchFlags.output, "output", "-", "output file (- for stdout)")
	f.IntVar(&batchFlags.limit, "limit", 0, "max number of controls to process (0 = all)")
	f.DurationVar(&batchFlags.delay, "delay", batch.DefaultDelay, "pause between controls (default from config)")
	rootCmd.AddCommand(batchCmd)
}
