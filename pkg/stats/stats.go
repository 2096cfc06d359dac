// Package stats computes per-category statistics over a monument table.
package stats

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"fortidsminder/pkg/table"
)

const (
	// OutputName is the file name the value counts are exported under
	OutputName = "anlaegsbetydning_value_counts.csv"

	CountsColumn       = "counts"
	MostFrequentColumn = "most_frequent_datering"
	DistributionColumn = "datering_distributions"
)

// CategoryCount aggregates the rows sharing one category label
type CategoryCount struct {
	Label string
	Count int
	// MostFrequent is the most common dating, the lexicographically
	// smallest one on ties, and empty when no row has a dating
	MostFrequent string
	Distribution map[string]int
}

// Count groups t by labelColumn. Rows with a blank label are ignored and
// blank datings are left out of the distribution. The result is sorted by
// count descending, then label ascending.
func Count(t *table.Table, labelColumn, datingColumn string) ([]CategoryCount, error) {
	labels, err := t.Column(labelColumn)
	if err != nil {
		return nil, err
	}
	datings, err := t.Column(datingColumn)
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*CategoryCount)
	for i, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		group, ok := groups[label]
		if !ok {
			group = &CategoryCount{Label: label, Distribution: make(map[string]int)}
			groups[label] = group
		}
		group.Count++
		if dating := strings.TrimSpace(datings[i]); dating != "" {
			group.Distribution[dating]++
		}
	}

	counts := make([]CategoryCount, 0, len(groups))
	for _, group := range groups {
		group.MostFrequent = mostFrequent(group.Distribution)
		counts = append(counts, *group)
	}

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Label < counts[j].Label
	})
	return counts, nil
}

func mostFrequent(distribution map[string]int) string {
	best, bestCount := "", 0
	for dating, n := range distribution {
		if n > bestCount || (n == bestCount && dating < best) {
			best, bestCount = dating, n
		}
	}
	return best
}

// ValueCounts builds the value-counts table: label, counts, most frequent
// dating and the dating distribution as a JSON object
func ValueCounts(t *table.Table, labelColumn, datingColumn string) (*table.Table, error) {
	counts, err := Count(t, labelColumn, datingColumn)
	if err != nil {
		return nil, err
	}

	out := table.New([]string{labelColumn, CountsColumn, MostFrequentColumn, DistributionColumn})
	for _, c := range counts {
		distribution, err := json.Marshal(c.Distribution)
		if err != nil {
			return nil, fmt.Errorf("failed to encode distribution for %q: %w", c.Label, err)
		}
		out.Rows = append(out.Rows, []string{c.Label, strconv.Itoa(c.Count), c.MostFrequent, string(distribution)})
	}
	return out, nil
}
