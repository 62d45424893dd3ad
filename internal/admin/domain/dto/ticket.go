package dto

import "time"

const (
	TicketOpen     = "open"
	TicketPending  = "pending"
	TicketResolved = "resolved"
	TicketClosed   = "closed"
)

type Ticket struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	UserRole     string          `json:"user_role"`
	RestaurantID string          `json:"restaurant_id,omitempty"`
	Subject      string          `json:"subject"`
	OrderNumber  string          `json:"order_number,omitempty"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Messages     []TicketMessage `json:"messages,omitempty"`
}

// TicketMessage carries the ticket owner so subscribers can filter replies by user.
type TicketMessage struct {
	ID                 string    `json:"id"`
	TicketID           string    `json:"ticket_id"`
	AuthorID           string    `json:"author_id"`
	AuthorRole         string    `json:"author_role"`
	Body               string    `json:"body,omitempty"`
	VoiceNoteURL       string    `json:"voice_note_url,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	TicketUserID       string    `json:"ticket_user_id,omitempty"`
	TicketUserRole     string    `json:"ticket_user_role,omitempty"`
	TicketRestaurantID string    `json:"ticket_restaurant_id,omitempty"`
}

type TicketRequest struct {
	Subject     string `json:"subject"`
	OrderNumber string `json:"order_number"`
	Body        string `json:"body"`
}

type MessageRequest struct {
	Body         string `json:"body"`
	VoiceNoteURL string `json:"voice_note_url"`
}

type TicketFilter struct {
	UserID string
	Status string
	Limit  int
	Offset int
}
