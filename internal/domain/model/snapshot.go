package model

import "time"

type RevenueSnapshot struct {
	ID          string    `json:"id"`
	ObjectKey   string    `json:"object_key"`
	GeneratedAt time.Time `json:"generated_at"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}
