package dto

type MenuItemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PriceCents  int64  `json:"price_cents"`
	Available   *bool  `json:"available,omitempty"`
}
