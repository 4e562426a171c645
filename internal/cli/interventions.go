package cli

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/nudge/internal/store"
)

var (
	ivSession string
	ivLimit   int
	ivCounts  bool
)

var interventionsCmd = &cobra.Command{
	Use:   "interventions",
	Short: "List journaled interventions",
	RunE:  runInterventions,
}

func init() {
	interventionsCmd.Flags().StringVarP(&ivSession, "session", "s", "", "only this session")
	interventionsCmd.Flags().IntVarP(&ivLimit, "limit", "n", 20, "maximum number of interventions")
	interventionsCmd.Flags().BoolVar(&ivCounts, "counts", false, "show totals per type instead")
}

// openDB opens the journal for CLI commands. NUDGE_DB_PATH overrides the
// default location.
func openDB() (*store.DB, error) {
	dbPath := os.Getenv("NUDGE_DB_PATH")
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return store.Open(dbPath)
}

func runInterventions(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	out := cmd.OutOrStdout()

	if ivCounts {
		counts, err := db.CountInterventionsByType()
		if err != nil {
			return err
		}
		types := make([]string, 0, len(counts))
		for t := range counts {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(out, "%-22s %d\n", t, counts[t])
		}
		return nil
	}

	var ivs []store.Intervention
	if ivSession != "" {
		ivs, err = db.GetInterventions(ivSession)
		if len(ivs) > ivLimit && ivLimit > 0 {
			ivs = ivs[len(ivs)-ivLimit:]
		}
	} else {
		ivs, err = db.GetRecentInterventions(ivLimit)
	}
	if err != nil {
		return err
	}
	if len(ivs) == 0 {
		fmt.Fprintln(out, "No interventions recorded.")
		return nil
	}

	for _, iv := range ivs {
		ts := time.UnixMilli(iv.CreatedAt).Format("2006-01-02 15:04:05")
		fmt.Fprintf(out, "[%s] %s %s stage %d (%s, p=%.2f)\n    [%s] %s\n",
			ts, iv.SessionID, iv.Type, iv.Stage, iv.Policy, iv.Probability, iv.UIType, iv.Script)
	}
	return nil
}
