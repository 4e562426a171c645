package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lazypower/nudge/internal/engine"
	"github.com/lazypower/nudge/internal/replay"
	"github.com/lazypower/nudge/internal/session"
	"github.com/lazypower/nudge/internal/tracker"
)

var (
	replayPolicy  string
	replaySeed    uint64
	replayJSON    bool
	replayJournal bool
)

var replayCmd = &cobra.Command{
	Use:   "replay [events.jsonl]",
	Short: "Replay a recorded event stream through the engine",
	Long: "Replay reads one event per line and prints every intervention that would have fired. " +
		"Sessions live in memory; nothing is journaled unless --journal is set.",
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayPolicy, "policy", "", "decision policy: soft or threshold (default from config)")
	replayCmd.Flags().Uint64Var(&replaySeed, "seed", 1, "random seed for the soft policy")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "print the summary as JSON")
	replayCmd.Flags().BoolVar(&replayJournal, "journal", false, "write fired interventions to the journal")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if replayPolicy != "" {
		cfg.Decision.Policy = replayPolicy
	}
	cfg.Decision.Seed = replaySeed

	events, skipped, err := replay.ReadFile(args[0])
	if err != nil {
		return err
	}
	if skipped > 0 {
		fmt.Fprintf(os.Stderr, "skipped %d malformed lines\n", skipped)
	}

	opts, err := decisionOptions(cfg.Decision)
	if err != nil {
		return err
	}
	tr := tracker.New()
	opts = append(opts, engine.WithContextSource(tr), engine.WithLogger(zap.NewNop()))
	if replayJournal {
		db, err := openJournal(cfg)
		if err != nil {
			return err
		}
		if db != nil {
			defer db.Close()
			opts = append(opts, engine.WithDB(db))
		}
	}

	sessions, err := session.NewMemory(0, 0, tr.Forget)
	if err != nil {
		return err
	}
	eng := engine.New(sessions, opts...)
	defer eng.Stop()

	sum, err := replay.Run(cmd.Context(), eng, events)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if replayJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}

	for _, d := range sum.Decisions {
		fmt.Fprintf(out, "%s  %-12s %-22s stage %d  p=%.2f  [%s] %s\n",
			d.At.Format("15:04:05.000"), d.SessionID, d.Type, d.Stage, d.Probability,
			d.Intervention.UIType, d.Intervention.Script)
	}
	fmt.Fprintf(out, "\n%d events, %d sessions, %d interventions, %d failed\n",
		sum.Events, sum.Sessions, len(sum.Decisions), sum.Failed)

	byType := sum.ByType()
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(out, "  %-22s %d\n", t, byType[t])
	}
	return nil
}
