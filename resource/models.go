package resource

import "time"

type Appointment struct {
	ID         int64     `json:"id,omitempty"`
	BusinessID int64     `json:"business_id,omitempty"`
	ClientID   int64     `json:"client_id"`
	StaffID    int64     `json:"staff_id"`
	ServiceID  int64     `json:"service_id"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
	Status     string    `json:"status,omitempty"`
	Notes      string    `json:"notes,omitempty"`
}

type Client struct {
	ID         int64  `json:"id,omitempty"`
	BusinessID int64  `json:"business_id,omitempty"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

type StaffMember struct {
	ID         int64  `json:"id,omitempty"`
	BusinessID int64  `json:"business_id,omitempty"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Role       string `json:"role,omitempty"`
	Active     bool   `json:"active"`
}

type Service struct {
	ID              int64   `json:"id,omitempty"`
	BusinessID      int64   `json:"business_id,omitempty"`
	Name            string  `json:"name"`
	Description     string  `json:"description,omitempty"`
	DurationMinutes int     `json:"duration_minutes"`
	Price           float64 `json:"price"`
	Currency        string  `json:"currency,omitempty"`
}

// AccountingEntry is an income or expense line.
type AccountingEntry struct {
	ID          int64   `json:"id,omitempty"`
	BusinessID  int64   `json:"business_id,omitempty"`
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency,omitempty"`
	Description string  `json:"description,omitempty"`
	Date        string  `json:"date,omitempty"`
}

type FAQ struct {
	ID         int64  `json:"id,omitempty"`
	BusinessID int64  `json:"business_id,omitempty"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Position   int    `json:"position,omitempty"`
}

type PaymentGateway struct {
	ID         int64          `json:"id,omitempty"`
	BusinessID int64          `json:"business_id,omitempty"`
	Provider   string         `json:"provider"`
	Enabled    bool           `json:"enabled"`
	PublicKey  string         `json:"public_key,omitempty"`
	Settings   map[string]any `json:"settings,omitempty"`
}

type WhatsAppInstance struct {
	ID          int64  `json:"id,omitempty"`
	BusinessID  int64  `json:"business_id,omitempty"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Status      string `json:"status,omitempty"`
}

type ShopProduct struct {
	ID          int64   `json:"id,omitempty"`
	BusinessID  int64   `json:"business_id,omitempty"`
	CategoryID  int64   `json:"category_id,omitempty"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
}

type ShopCategory struct {
	ID          int64  `json:"id,omitempty"`
	BusinessID  int64  `json:"business_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
