package models

import (
	"strings"
	"time"
)

// Restaurant is a listed venue users can recommend and message about.
type Restaurant struct {
	// ID is the unique restaurant identifier.
	ID string `json:"id"`

	// Name is the venue name.
	Name string `json:"name"`

	// Address is the street address.
	Address string `json:"address,omitempty"`

	// City is the venue's city.
	City string `json:"city,omitempty"`

	// BudgetLevel is a 1-4 price band, 0 when unknown.
	BudgetLevel int `json:"budget_level,omitempty"`

	// FoodTypes lists cuisine tags (e.g. "italian", "ramen").
	FoodTypes []string `json:"food_types,omitempty"`

	// CreatedAt is when the venue was added.
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the fields required at the store boundary.
func (r *Restaurant) Validate() error {
	validation := &ValidationErrors{}
	if strings.TrimSpace(r.Name) == "" {
		validation.Add("name", ErrMissingName)
	}
	if r.BudgetLevel < 0 || r.BudgetLevel > 4 {
		validation.AddMessage("budget_level", "must be between 0 and 4")
	}
	return validation.Err()
}

// RestaurantFilter narrows restaurant listings.
type RestaurantFilter struct {
	// City filters by exact city match (empty = all).
	City string

	// MaxBudget filters to venues at or below the budget level (0 = all).
	MaxBudget int

	// FoodType filters to venues carrying the cuisine tag (empty = all).
	FoodType string

	// Limit caps the number of results (0 = no limit).
	Limit int
}
