package predict

import (
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/aarondl/opt/omit"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mpapenbr/qualipredict/log"
	"github.com/mpapenbr/qualipredict/pkg/cmd/output"
	"github.com/mpapenbr/qualipredict/pkg/config"
	"github.com/mpapenbr/qualipredict/pkg/model"
	"github.com/mpapenbr/qualipredict/pkg/predict"
	"github.com/mpapenbr/qualipredict/pkg/refdata"
)

func NewPredictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "computes a qualifying prediction locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := OptionsFromConfig(cmd.Flags().Changed("use-performance"))
			if err := predict.Validate(config.Circuit, opts); err != nil {
				return err
			}
			format, err := output.ParseFormat(config.OutputFormat)
			if err != nil {
				return err
			}
			calc := predict.NewCalculator(
				predict.WithTables(refdata.Default()),
				predict.WithRandom(NewRandom(config.Seed)),
				predict.WithLogger(log.Default().Named("predict")))
			run := Run(calc, config.Circuit, opts)
			return Render(cmd.OutOrStdout(), format, run)
		},
	}
	AddPredictFlags(cmd.Flags())
	cmd.Flags().Int64Var(&config.Seed,
		"seed",
		0,
		"seed for the jitter source (0 uses a random seed)")
	return cmd
}

// AddPredictFlags registers the flags shared by local and remote predictions.
func AddPredictFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&config.Circuit,
		"circuit",
		"c",
		"Japan",
		"circuit to predict")
	fs.StringVarP(&config.ModelType,
		"model",
		"m",
		string(model.ModelTypeHybrid),
		"model type (performance, ml, hybrid)")
	fs.StringVar(&config.MLModel,
		"ml-model",
		string(model.MLLinear),
		"ml algorithm (linear, ridge, rf, gbm), display only")
	fs.Float64Var(&config.MLWeight,
		"ml-weight",
		0.7,
		"weight of the ml estimate in hybrid mode (0..1)")
	fs.StringVarP(&config.Weather,
		"weather",
		"w",
		string(model.WeatherDry),
		"weather condition (dry, damp, wet)")
	fs.BoolVar(&config.UsePerformance,
		"use-performance",
		true,
		"use team and driver performance factors")
	fs.StringVarP(&config.OutputFormat,
		"output",
		"o",
		string(output.FormatTable),
		"output format (table, json)")
}

// OptionsFromConfig builds the prediction options from the flag values.
// UsePerformance is only set if the flag was given explicitly.
func OptionsFromConfig(usePerformanceSet bool) model.Options {
	opts := model.Options{
		ModelType: model.ModelType(config.ModelType),
		MLModel:   model.MLModel(config.MLModel),
		MLWeight:  config.MLWeight,
		Weather:   model.Weather(config.Weather),
	}
	if usePerformanceSet {
		opts.UsePerformance = omit.From(config.UsePerformance)
	}
	if !opts.MLModel.IsValid() {
		log.Warn("unknown ml model, only used for display",
			log.String("mlModel", config.MLModel))
	}
	return opts
}

// NewRandom returns a seeded source or the shared global one for seed 0.
func NewRandom(seed int64) predict.Random {
	if seed == 0 {
		return nil
	}
	//nolint:gosec // simulation jitter
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

func Run(calc *predict.Calculator, circuit string, opts model.Options) *model.PredictionRun {
	return &model.PredictionRun{
		ID:             uuid.NewString(),
		Circuit:        circuit,
		Options:        opts,
		EffectiveModel: predict.EffectiveModel(opts),
		CreatedAt:      time.Now().UTC(),
		Entries:        calc.Compute(circuit, opts),
	}
}

func Render(w io.Writer, format output.Format, run *model.PredictionRun) error {
	if format == output.FormatJSON {
		return output.WriteJSON(w, run)
	}
	output.Settings(w, run.Circuit, run.Options)
	fmt.Fprintln(w)
	output.PredictionTable(w, run)
	return nil
}
