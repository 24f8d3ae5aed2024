package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/fullres/internal/acquire"
	"github.com/vietddude/fullres/internal/control"
	"github.com/vietddude/fullres/internal/core/domain"
)

var (
	resolveHint    string
	resolveTarget  string
	resolveTimeout time.Duration
	resolveEager   bool
	outputJSON     bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <url>...",
	Short: "Acquire one or more resources and print the winning source",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveHint, "hint", "", "anchor hint url (single url only)")
	resolveCmd.Flags().StringVar(&resolveTarget, "target", "", "explicit target url (single url only)")
	addEngineFlags(resolveCmd)
	rootCmd.AddCommand(resolveCmd)
}

func addEngineFlags(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&resolveTimeout, "timeout", 0, "per-attempt timeout (overrides engine.timeout)")
	cmd.Flags().BoolVar(&resolveEager, "eager", false, "race the first strategy with the direct source")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "print instances as JSON")
}

func applyEngineFlags(cmd *cobra.Command) {
	if resolveTimeout != 0 {
		cfg.Engine.Timeout = resolveTimeout
	}
	if cmd.Flags().Changed("eager") {
		cfg.Engine.Eager = resolveEager
	}
}

func runResolve(cmd *cobra.Command, args []string) error {
	if len(args) > 1 && (resolveHint != "" || resolveTarget != "") {
		return fmt.Errorf("--hint and --target require a single url")
	}
	applyEngineFlags(cmd)

	app, err := control.NewApp(cfg, control.WithRunID(runID))
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Ids follow argument order so the table does too.
	ids := make([]string, len(args))
	for i, u := range args {
		ids[i] = fmt.Sprintf("%03d", i+1)
		app.Engine().Submit(ctx, acquire.Request{
			ID:         ids[i],
			CurrentURL: u,
			HintURL:    resolveHint,
			TargetURL:  resolveTarget,
		})
	}
	app.Engine().Wait()

	return printInstances(cmd.OutOrStdout(), lookup(app.Engine(), ids))
}

// lookup returns the snapshots for ids in the given order.
func lookup(e *acquire.Engine, ids []string) []domain.ResourceInstance {
	out := make([]domain.ResourceInstance, 0, len(ids))
	for _, id := range ids {
		if inst, ok := e.Instance(id); ok {
			out = append(out, inst)
		}
	}
	return out
}

func printInstances(out io.Writer, instances []domain.ResourceInstance) error {
	if outputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(instances)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tSTRATEGY\tREASON\tATTEMPTS\tTARGET\tSOURCE")
	for _, inst := range instances {
		strategy := inst.UsedStrategy
		if strategy == "" && inst.State == domain.StateSucceeded {
			strategy = "direct"
		}
		reason := string(inst.FailureReason)
		if inst.LastReason != "" && inst.FailureReason == domain.ReasonExhausted {
			reason = fmt.Sprintf("%s (%s)", inst.FailureReason, inst.LastReason)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			inst.ID,
			inst.State,
			dash(strategy),
			dash(reason),
			len(inst.Attempts),
			inst.OriginalSource,
			inst.CurrentSource,
		)
	}
	return w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
