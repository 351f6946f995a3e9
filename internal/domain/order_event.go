package domain

import "time"

type OrderCreatedEvent struct {
	OrderID      uint64     `json:"orderId"`
	Name         string     `json:"name"`
	Sizes        SizeCounts `json:"sizes"`
	TotalItems   int        `json:"totalItems"`
	SubmitterRef string     `json:"submitterRef"`
	CreatedAt    time.Time  `json:"createdAt"`
}

type OrderPaidEvent struct {
	OrderID uint64 `json:"orderId"`
	Paid    bool   `json:"paid"`
}
