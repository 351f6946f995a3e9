package domain

import "time"

type Size string

const (
	SizeS   Size = "S"
	SizeM   Size = "M"
	SizeL   Size = "L"
	SizeXL  Size = "XL"
	SizeXXL Size = "XXL"
)

// Sizes lists every sellable size in presentation order.
var Sizes = []Size{SizeS, SizeM, SizeL, SizeXL, SizeXXL}

// SizeCounts maps size label to quantity. Stored records always carry
// all five labels, missing ones filled with 0.
type SizeCounts map[Size]int

// Normalized returns a copy with every label present and negatives clamped to 0.
func (c SizeCounts) Normalized() SizeCounts {
	out := make(SizeCounts, len(Sizes))
	for _, s := range Sizes {
		q := c[s]
		if q < 0 {
			q = 0
		}
		out[s] = q
	}
	return out
}

// Total sums all quantities.
func (c SizeCounts) Total() int {
	total := 0
	for _, s := range Sizes {
		total += c[s]
	}
	return total
}

type Order struct {
	ID           uint64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name         string     `json:"name" gorm:"not null"`
	Sizes        SizeCounts `json:"sizes" gorm:"serializer:json;not null"`
	BrandRequest string     `json:"brandRequest"`
	Notes        string     `json:"notes"`
	TotalItems   int        `json:"totalItems" gorm:"not null"`
	Paid         bool       `json:"paid" gorm:"not null;default:false"`
	SubmitterRef string     `json:"submitterRef" gorm:"index;not null"`
	CreatedAt    time.Time  `json:"createdAt" gorm:"index"`
}

// Draft is the external submission shape before the store assigns
// id and createdAt and freezes totalItems.
type Draft struct {
	Name         string     `json:"name"`
	Sizes        SizeCounts `json:"sizes"`
	BrandRequest string     `json:"brandRequest"`
	Notes        string     `json:"notes"`
}
