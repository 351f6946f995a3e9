package http

import "order-ledger/internal/domain"

type SubmitOrderRequest struct {
	Name         string         `json:"name"`
	Sizes        map[string]int `json:"sizes"`
	BrandRequest string         `json:"brandRequest"`
	Notes        string         `json:"notes"`
}

// ToDraft converts the wire shape into a domain draft. Unknown size
// labels are dropped; missing ones default to 0 downstream.
func (r SubmitOrderRequest) ToDraft() domain.Draft {
	sizes := make(domain.SizeCounts, len(domain.Sizes))
	for _, s := range domain.Sizes {
		if q, ok := r.Sizes[string(s)]; ok {
			sizes[s] = q
		}
	}
	return domain.Draft{
		Name:         r.Name,
		Sizes:        sizes,
		BrandRequest: r.BrandRequest,
		Notes:        r.Notes,
	}
}

// TogglePaidRequest carries the paid value the caller last saw; the
// server commits its negation.
type TogglePaidRequest struct {
	Paid bool `json:"paid"`
}

type BoardResponse struct {
	Orders    []domain.Order `json:"orders"`
	Totals    domain.Totals  `json:"totals"`
	UnitPrice int64          `json:"unitPrice"`
}
