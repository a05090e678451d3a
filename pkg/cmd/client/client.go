package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"connectrpc.com/connect"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/qualipredict/log"
	"github.com/mpapenbr/qualipredict/pkg/api/predictv1"
	"github.com/mpapenbr/qualipredict/pkg/cmd/output"
	predictcmd "github.com/mpapenbr/qualipredict/pkg/cmd/predict"
	cmdutil "github.com/mpapenbr/qualipredict/pkg/cmd/util"
	"github.com/mpapenbr/qualipredict/pkg/config"
	"github.com/mpapenbr/qualipredict/pkg/grpc/server/util"
	"github.com/mpapenbr/qualipredict/pkg/model"
	"github.com/mpapenbr/qualipredict/pkg/utils"
	"github.com/mpapenbr/qualipredict/version"
)

var ErrNoMatch = errors.New("selector did not match")

var (
	selector   string
	watchCount int
)

func NewClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "calls a running prediction server",
	}
	cmd.PersistentFlags().StringVar(&config.ServerURL,
		"addr",
		"http://localhost:8080",
		"base url of the prediction server")
	cmd.PersistentFlags().StringVar(&selector,
		"select",
		"",
		"JSONPath applied to the response, e.g. $.entries[0].driver")
	cmd.AddCommand(newPredictCmd(), newCircuitsCmd(), newWatchCmd())
	return cmd
}

func newClient(ctx context.Context) (*predictv1.PredictionServiceClient, error) {
	if err := cmdutil.WaitForServices(ctx, utils.ExtractFromHTTPURL(config.ServerURL)); err != nil {
		return nil, err
	}
	return predictv1.NewPredictionServiceClient(http.DefaultClient, config.ServerURL,
		connect.WithInterceptors(util.NewClientVersionSender(version.Version))), nil
}

func newPredictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "requests a prediction from the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(config.OutputFormat)
			if err != nil {
				return err
			}
			c, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			res, err := c.Predict(cmd.Context(), connect.NewRequest(&predictv1.PredictRequest{
				Circuit: config.Circuit,
				Options: predictcmd.OptionsFromConfig(cmd.Flags().Changed("use-performance")),
			}))
			if err != nil {
				return err
			}
			log.Debug("prediction received", log.String("id", res.Msg.ID))
			if selector != "" {
				return Select(cmd.OutOrStdout(), res.Msg, selector)
			}
			return predictcmd.Render(cmd.OutOrStdout(), format, res.Msg)
		},
	}
	predictcmd.AddPredictFlags(cmd.Flags())
	return cmd
}

func newCircuitsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "circuits",
		Short: "lists the circuits known by the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			res, err := c.ListCircuits(cmd.Context(),
				connect.NewRequest(&predictv1.ListCircuitsRequest{}))
			if err != nil {
				return err
			}
			if selector != "" {
				return Select(cmd.OutOrStdout(), res.Msg, selector)
			}
			output.CircuitsTable(cmd.OutOrStdout(), res.Msg.Circuits)
			return nil
		},
	}
}

func newWatchCmd() *cobra.Command {
	var circuit string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "prints prediction runs as they are computed by the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd.Context())
			if err != nil {
				return err
			}
			return watch(cmd.Context(), cmd.OutOrStdout(), c, circuit, watchCount)
		},
	}
	cmd.Flags().StringVar(&circuit, "circuit", "", "only show runs for this circuit")
	cmd.Flags().IntVar(&watchCount, "count", 0, "stop after this many runs (0 = unlimited)")
	return cmd
}

//nolint:whitespace // editor/linter issue
func watch(
	ctx context.Context,
	w io.Writer,
	c *predictv1.PredictionServiceClient,
	circuit string,
	count int,
) error {
	stream, err := c.WatchPredictions(ctx,
		connect.NewRequest(&predictv1.WatchPredictionsRequest{Circuit: circuit}))
	if err != nil {
		return err
	}
	defer stream.Close()
	received := 0
	for stream.Receive() {
		if err := printRun(w, stream.Msg()); err != nil {
			return err
		}
		received++
		if count > 0 && received >= count {
			return nil
		}
	}
	if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printRun(w io.Writer, run *model.PredictionRun) error {
	if selector != "" {
		return Select(w, run, selector)
	}
	if len(run.Entries) == 0 {
		return nil
	}
	pole := run.Entries[0]
	_, err := fmt.Fprintf(w, "%s %-15s %-17s pole: %s (%s) %s\n",
		run.CreatedAt.Format("15:04:05"), run.Circuit,
		run.EffectiveModel.DisplayName(), pole.Driver, pole.Team, pole.Time)
	return err
}

// Select prints every match of the JSONPath expr applied to v, one per line.
func Select(w io.Writer, v any, expr string) error {
	x, err := jp.ParseString(expr)
	if err != nil {
		return fmt.Errorf("invalid selector: %w", err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	obj, err := oj.Parse(data)
	if err != nil {
		return err
	}
	res := x.Get(obj)
	if len(res) == 0 {
		return fmt.Errorf("%w: %s", ErrNoMatch, expr)
	}
	for _, r := range res {
		if _, err := fmt.Fprintln(w, oj.JSON(r)); err != nil {
			return err
		}
	}
	return nil
}
