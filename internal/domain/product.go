package domain

import "time"

type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PricePaise int64     `json:"pricePaise"`
	Stock      int       `json:"stock"`
	CreatedAt  time.Time `json:"createdAt"`
}
