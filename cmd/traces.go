package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/rvila94/ALASCA-sub001/sim/trace"
)

var traceUnit time.Duration

// showTraces lists the runs in the store at path, or renders the given ones.
func showTraces(ctx context.Context, w io.Writer, path string, ids []string) error {
	store, err := trace.OpenStore(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(ids) == 0 {
		ids, err := store.RunIDs(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(w, id)
		}
		return nil
	}
	for _, id := range ids {
		st, err := store.Load(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "# run %s (%s)\n", st.RunID, st.Config.Level)
		if err := trace.Render(w, st, traceUnit); err != nil {
			return err
		}
	}
	return nil
}

// tracesCmd reads back traces saved by run or testbed
var tracesCmd = &cobra.Command{
	Use:   "traces DB [RUN_ID...]",
	Short: "List the runs of a trace store, or render some of them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showTraces(cmd.Context(), cmd.OutOrStdout(), args[0], args[1:])
	},
}

func init() {
	tracesCmd.Flags().DurationVar(&traceUnit, "unit", time.Hour, "Time unit instants are printed in")
}
