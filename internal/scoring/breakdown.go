package scoring

import (
	"sort"
	"time"
)

// ContributionStatus describes one contribution's standing at query time.
type ContributionStatus struct {
	Key         string     `json:"key"`
	At          time.Time  `json:"at"`
	AgeMs       int64      `json:"age_ms"`
	DecayFactor float64    `json:"decay_factor"`
	Original    Dimensions `json:"original"`
	Remaining   Dimensions `json:"remaining"`
	Occurrence  int        `json:"occurrence"`
}

// Breakdown is the diagnostic view of a session's score history.
type Breakdown struct {
	Scores  Dimensions           `json:"scores"`
	Active  []ContributionStatus `json:"active"`
	Decayed []ContributionStatus `json:"decayed"`
	// ByKey sums remaining influence per scenario key, active contributions only.
	ByKey map[string]Dimensions `json:"by_key"`
}

// Breakdown splits contributions into those still materially active (decay
// factor above threshold) and those fully decayed. A non-positive threshold
// uses ActiveThreshold. Active entries are ordered newest first.
func (s *State) Breakdown(now time.Time, baselineClarity, threshold float64) Breakdown {
	if threshold <= 0 {
		threshold = ActiveThreshold
	}
	b := Breakdown{
		Scores: s.Current(now, baselineClarity),
		ByKey:  make(map[string]Dimensions),
	}
	for _, c := range s.Contributions {
		age := now.Sub(c.At)
		factor := Decay(age)
		st := ContributionStatus{
			Key:         c.Key,
			At:          c.At,
			AgeMs:       age.Milliseconds(),
			DecayFactor: factor,
			Original:    c.Delta,
			Remaining:   c.Delta.Scale(factor),
			Occurrence:  c.Occurrence,
		}
		if factor > threshold {
			b.Active = append(b.Active, st)
			b.ByKey[c.Key] = b.ByKey[c.Key].Add(st.Remaining)
		} else {
			b.Decayed = append(b.Decayed, st)
		}
	}
	sort.SliceStable(b.Active, func(i, j int) bool {
		return b.Active[i].At.After(b.Active[j].At)
	})
	return b
}
