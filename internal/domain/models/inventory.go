package models

import "time"

type Inventory struct {
	ProductID         string    `json:"product_id" db:"product_id"`
	AvailableQuantity int       `json:"available_quantity" db:"available_quantity"`
	ReservedQuantity  int       `json:"reserved_quantity" db:"reserved_quantity"`
	Version           int64     `json:"version" db:"version"`
	LastUpdated       time.Time `json:"last_updated" db:"last_updated"`
}

func (i *Inventory) CanReserve(quantity int) bool {
	return i.AvailableQuantity >= quantity
}
