package core

import (
	"encoding/json"
	"sort"
)

// MonthSet is the set of months (1-12) a budget covers. The zero value means
// "all months". Budget payloads arrive with months absent, null, or an empty
// array interchangeably; all three normalize to the all-months value here so
// the resolver never branches on nil versus empty again.
type MonthSet struct {
	mask uint16 // bit m set = month m+1 covered; 0 = all months
}

// AllMonths is the MonthSet covering every month.
var AllMonths = MonthSet{}

// NewMonthSet builds a MonthSet from explicit month numbers. Values outside
// 1-12 are ignored. An empty list yields AllMonths.
func NewMonthSet(months ...int) MonthSet {
	var s MonthSet
	for _, m := range months {
		if m >= 1 && m <= 12 {
			s.mask |= 1 << uint(m-1)
		}
	}
	return s
}

// IsAll reports whether the set covers every month.
func (s MonthSet) IsAll() bool {
	return s.mask == 0
}

// Contains reports whether month m (1-12) is covered.
func (s MonthSet) Contains(m int) bool {
	if m < 1 || m > 12 {
		return false
	}
	if s.mask == 0 {
		return true
	}
	return s.mask&(1<<uint(m-1)) != 0
}

// Months returns the explicit month numbers in ascending order, or nil for
// the all-months set.
func (s MonthSet) Months() []int {
	if s.mask == 0 {
		return nil
	}
	out := make([]int, 0, 12)
	for m := 1; m <= 12; m++ {
		if s.mask&(1<<uint(m-1)) != 0 {
			out = append(out, m)
		}
	}
	return out
}

// MarshalJSON encodes the set as a sorted array of month numbers; the
// all-months set encodes as an empty array.
func (s MonthSet) MarshalJSON() ([]byte, error) {
	months := s.Months()
	if months == nil {
		months = []int{}
	}
	return json.Marshal(months)
}

// UnmarshalJSON accepts null or an array of month numbers. Out-of-range
// values are dropped rather than rejected (permissive boundary handling).
func (s *MonthSet) UnmarshalJSON(data []byte) error {
	*s = MonthSet{}
	if string(data) == "null" {
		return nil
	}
	var months []int
	if err := json.Unmarshal(data, &months); err != nil {
		return err
	}
	sort.Ints(months)
	*s = NewMonthSet(months...)
	return nil
}
