package models

import "time"

// Payment is one payment attempt against a booking.
type Payment struct {
	ID          int64         `json:"id"`
	BookingID   int64         `json:"booking_id"`
	Method      PaymentMethod `json:"method"`
	Provider    string        `json:"provider,omitempty"`
	Amount      int64         `json:"amount"`
	Fee         int64         `json:"fee"`
	Total       int64         `json:"total"`
	Status      PaymentStatus `json:"status"`
	ExternalRef string        `json:"external_ref,omitempty"`
	ExpiresAt   *time.Time    `json:"expires_at,omitempty"`
	CreatedBy   int64         `json:"created_by"`
	PaidBy      *int64        `json:"paid_by,omitempty"`
	PaidAt      *time.Time    `json:"paid_at,omitempty"`
	FailedAt    *time.Time    `json:"failed_at,omitempty"`
	RefundedBy  *int64        `json:"refunded_by,omitempty"`
	RefundedAt  *time.Time    `json:"refunded_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// TransitionRecord is the immutable history entry of one accepted transition.
type TransitionRecord struct {
	ID         int64     `json:"id"`
	BookingID  int64     `json:"booking_id"`
	Action     Action    `json:"action"`
	FromStatus Status    `json:"from_status"` // empty for creation
	ToStatus   Status    `json:"to_status"`
	ActorID    string    `json:"actor_id"` // numeric user id or "system"
	Reason     string    `json:"reason,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// User is a known caller with a role level.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
