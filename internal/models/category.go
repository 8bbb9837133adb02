package models

// Category is a spending category as known by the budgeting service.
type Category struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Uncategorized is the display name used in reports for transactions without a category.
const Uncategorized = "Uncategorized"
