// SPDX-License-Identifier: MIT

package report

import "fmt"

// Utilization is one device's space figures at a point in time.
type Utilization struct {
	Total   int64
	Free    int64
	MinFree int64
}

// Used is the space taken by recordings and the appliance itself.
func (u Utilization) Used() int64 { return u.Total - u.Free }

// Percentages returns used and free space as a percentage of the total. A
// full disk is always reported as 100% used.
func (u Utilization) Percentages() (used, free float64) {
	if u.Free == 0 || u.Total <= 0 {
		return 100, 0
	}
	return pct(u.Used(), u.Total), pct(u.Free, u.Total)
}

// Line renders the utilization report, e.g.
// "Total: 2.00 TB; Used: 1.50 TB (75.0%); Free: 500.00 GB (25.0%)".
func (u Utilization) Line() string {
	used, free := u.Percentages()
	line := fmt.Sprintf("Total: %s; Used: %s (%.1f%%); Free: %s (%.1f%%)",
		Size(u.Total), Size(u.Used()), used, Size(u.Free), free)
	if u.MinFree > 0 {
		line += fmt.Sprintf("; Minimum Free: %s (%.1f%%)", Size(u.MinFree), pct(u.MinFree, u.Total))
	}
	return line
}

func pct(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
