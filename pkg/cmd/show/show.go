package show

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/qualipredict/pkg/cmd/output"
	"github.com/mpapenbr/qualipredict/pkg/config"
	"github.com/mpapenbr/qualipredict/pkg/refdata"
)

func NewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "shows the reference data",
	}
	cmd.PersistentFlags().StringVarP(&config.OutputFormat,
		"output",
		"o",
		string(output.FormatTable),
		"output format (table, json)")
	cmd.AddCommand(
		newSubCmd("circuits", "lists the circuits with their base lap times",
			func(w io.Writer, t *refdata.Tables) (any, func()) {
				c := t.Circuits()
				return c, func() { output.CircuitsTable(w, c) }
			}),
		newSubCmd("drivers", "lists the driver roster",
			func(w io.Writer, t *refdata.Tables) (any, func()) {
				d := t.RosterWithColors()
				return d, func() { output.DriversTable(w, d) }
			}),
		newSubCmd("historical", "shows the historical summary",
			func(w io.Writer, t *refdata.Tables) (any, func()) {
				h := t.HistoricalSummary()
				return h, func() { output.HistoricalTables(w, h) }
			}),
		newSubCmd("performance", "shows the model performance metrics",
			func(w io.Writer, t *refdata.Tables) (any, func()) {
				p := t.ModelPerformance()
				return p, func() { output.PerformanceTables(w, p) }
			}),
	)
	return cmd
}

// dataFunc returns the data for json output and the table renderer.
type dataFunc func(w io.Writer, t *refdata.Tables) (any, func())

func newSubCmd(use, short string, data dataFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(config.OutputFormat)
			if err != nil {
				return err
			}
			v, renderTable := data(cmd.OutOrStdout(), refdata.Default())
			if format == output.FormatJSON {
				return output.WriteJSON(cmd.OutOrStdout(), v)
			}
			renderTable()
			return nil
		},
	}
}
