package models

import (
	"sort"
	"time"
)

// Dataset is the complete result of one successful load. It replaces any
// previously loaded dataset wholesale and is never mutated afterwards.
type Dataset struct {
	ID          string    `json:"id"`
	Generation  uint64    `json:"generation"`
	Source      string    `json:"source"`
	Shape       Shape     `json:"shape"`
	Fingerprint uint64    `json:"fingerprint"`
	LoadedAt    time.Time `json:"loaded_at"`
	Records     []Record  `json:"-"`
	Skipped     int       `json:"skipped"`
}

// Len returns the number of records in the dataset.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Countries returns the distinct country names in ascending order.
func (d *Dataset) Countries() []string {
	if d == nil {
		return nil
	}
	return DistinctCountries(d.Records)
}

// DistinctCountries returns the sorted, de-duplicated country names of records.
func DistinctCountries(records []Record) []string {
	seen := make(map[string]struct{}, len(records))
	out := make([]string, 0)
	for _, r := range records {
		if _, dup := seen[r.Country]; dup {
			continue
		}
		seen[r.Country] = struct{}{}
		out = append(out, r.Country)
	}
	sort.Strings(out)
	return out
}
