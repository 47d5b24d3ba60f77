package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"credit-analytics/models"
)

// GroupKey selects the record field a comparison partitions on.
type GroupKey string

const (
	GroupByCountry GroupKey = "country"
	GroupByYear    GroupKey = "year"
)

// ParseGroupKey validates a group key name.
func ParseGroupKey(s string) (GroupKey, error) {
	switch GroupKey(strings.ToLower(strings.TrimSpace(s))) {
	case GroupByCountry:
		return GroupByCountry, nil
	case GroupByYear:
		return GroupByYear, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGroupKey, s)
}

func (k GroupKey) valueOf(r models.Record) string {
	if k == GroupByYear {
		return r.Year
	}
	return r.Country
}

// FilterByCountry keeps records whose country contains query, ignoring case.
// A blank query means no filter and returns records as given.
func FilterByCountry(records []models.Record, query string) []models.Record {
	q := strings.TrimSpace(query)
	if q == "" {
		return records
	}
	q = strings.ToLower(q)

	out := make([]models.Record, 0)
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Country), q) {
			out = append(out, r)
		}
	}
	return out
}

// ComputeStatistics summarises the amounts of records. Variance is the
// population variance and StdDev is its square root.
func ComputeStatistics(records []models.Record) (*models.Summary, error) {
	if len(records) == 0 {
		return nil, ErrEmptyDataset
	}

	values := make([]float64, len(records))
	for i, r := range records {
		values[i] = r.Amount
	}

	s := &models.Summary{
		Count: len(values),
		Max:   values[0],
		Min:   values[0],
	}
	for _, v := range values {
		s.Sum += v
		if v > s.Max {
			s.Max = v
		}
		if v < s.Min {
			s.Min = v
		}
	}

	n := float64(len(values))
	// Rounding in the sum can push the quotient just outside [Min, Max].
	s.Mean = math.Min(s.Max, math.Max(s.Min, s.Sum/n))

	var squares float64
	for _, v := range values {
		d := v - s.Mean
		squares += d * d
	}
	s.Variance = squares / n
	s.StdDev = math.Sqrt(s.Variance)
	s.Mode = mode(values)

	return s, nil
}

// mode returns the most frequent value; ties go to the smallest value.
func mode(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	best, bestCount := sorted[0], 0
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}
		if j-i > bestCount {
			best, bestCount = sorted[i], j-i
		}
		if j == i {
			j++ // NaN never equals itself
		}
		i = j
	}
	return best
}

// GroupBy returns the records whose key field equals label exactly.
func GroupBy(records []models.Record, key GroupKey, label string) []models.Record {
	out := make([]models.Record, 0)
	for _, r := range records {
		if key.valueOf(r) == label {
			out = append(out, r)
		}
	}
	return out
}

// Compare computes independent summaries for the labelA and labelB groups.
// An empty group fails only its own side with ErrEmptyDataset.
func Compare(records []models.Record, key GroupKey, labelA, labelB string) (*models.Comparison, error) {
	if _, err := ParseGroupKey(string(key)); err != nil {
		return nil, err
	}

	cmp := &models.Comparison{Key: string(key)}
	for i, label := range [2]string{labelA, labelB} {
		group := GroupBy(records, key, label)
		side := models.ComparisonSide{Label: label, Records: group}
		side.Summary, side.Err = ComputeStatistics(group)
		cmp.Sides[i] = side
	}
	return cmp, nil
}

// CompareDataset runs Compare against ds and stamps the result with the
// dataset generation so stale results can be detected downstream.
func CompareDataset(ds *models.Dataset, key GroupKey, labelA, labelB string) (*models.Comparison, error) {
	if ds == nil {
		return nil, ErrEmptyDataset
	}
	cmp, err := Compare(ds.Records, key, labelA, labelB)
	if err != nil {
		return nil, err
	}
	cmp.Generation = ds.Generation
	return cmp, nil
}
