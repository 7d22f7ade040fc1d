package validate

import (
	"fmt"
	"sort"

	"github.com/iidx-tools/songmaster/internal/store"
	"github.com/iidx-tools/songmaster/internal/util"
)

// MissingPolicy decides how a business key present in the previous
// generation but absent from the new one is treated.
type MissingPolicy string

const (
	MissingError MissingPolicy = "error"
	MissingWarn  MissingPolicy = "warn"
)

// ParseMissingPolicy validates a configured policy string
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch MissingPolicy(s) {
	case MissingError:
		return MissingError, nil
	case MissingWarn:
		return MissingWarn, nil
	}
	return "", fmt.Errorf("%w: invalid missing_policy: %q", util.ErrInvalidConfig, s)
}

// StabilitySummary reports the key overlap between two generations
type StabilitySummary struct {
	OldCharts    int
	NewCharts    int
	SharedCharts int
	NewOnly      int
	MissingKeys  []store.ChartKey
}

// ChartIDStability compares the chart id of every business key shared by
// two database generations. A reassigned id is always fatal; downstream
// consumers persist chart ids, so reassignment silently corrupts their
// data. Keys that disappeared are fatal only under MissingError.
func ChartIDStability(oldPath, newPath string, policy MissingPolicy) (*StabilitySummary, error) {
	oldKeys, err := loadChartKeys(oldPath)
	if err != nil {
		return nil, err
	}
	newKeys, err := loadChartKeys(newPath)
	if err != nil {
		return nil, err
	}

	summary := &StabilitySummary{
		OldCharts: len(oldKeys),
		NewCharts: len(newKeys),
	}

	for key, oldID := range oldKeys {
		newID, present := newKeys[key]
		if !present {
			summary.MissingKeys = append(summary.MissingKeys, key)
			continue
		}
		summary.SharedCharts++
		if newID != oldID {
			return nil, fmt.Errorf("%w: chart id reassigned for %s (old=%d, new=%d)",
				util.ErrStability, key, oldID, newID)
		}
	}
	summary.NewOnly = len(newKeys) - summary.SharedCharts
	sort.Slice(summary.MissingKeys, func(i, j int) bool {
		return summary.MissingKeys[i].String() < summary.MissingKeys[j].String()
	})

	if len(summary.MissingKeys) > 0 {
		if policy == MissingError {
			return nil, fmt.Errorf("%w: %d charts from the previous generation are missing (first: %s)",
				util.ErrStability, len(summary.MissingKeys), summary.MissingKeys[0])
		}
		for _, key := range summary.MissingKeys {
			util.WarnLog("stability: chart %s missing from new generation", key)
		}
	}

	return summary, nil
}

func loadChartKeys(path string) (map[store.ChartKey]int64, error) {
	st, err := store.OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return store.ChartKeyMap(st.DB())
}
