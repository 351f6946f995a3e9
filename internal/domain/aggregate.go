package domain

// Totals is the dashboard aggregate recomputed from a snapshot.
type Totals struct {
	PerSize      SizeCounts `json:"perSize"`
	TotalItems   int        `json:"totalItems"`
	TotalRevenue int64      `json:"totalRevenue"`
}

// Aggregate recomputes per-size totals and revenue from a snapshot.
// It is pure: same records in, same totals out, regardless of how
// often or in which order it is called.
func Aggregate(records []Order, unitPrice int64) Totals {
	perSize := make(SizeCounts, len(Sizes))
	for _, s := range Sizes {
		perSize[s] = 0
	}

	totalItems := 0
	for _, r := range records {
		for _, s := range Sizes {
			perSize[s] += r.Sizes[s]
		}
		totalItems += r.TotalItems
	}

	return Totals{
		PerSize:      perSize,
		TotalItems:   totalItems,
		TotalRevenue: int64(totalItems) * unitPrice,
	}
}
