package models

import "time"

// Booking is a reservation of one field for one [StartTime, EndTime) window on one date.
type Booking struct {
	ID            int64  `json:"id"`
	PublicID      string `json:"public_id"`
	BookingNumber string `json:"booking_number"`

	FieldID   int64  `json:"field_id"`
	Date      string `json:"date"`       // YYYY-MM-DD
	StartTime string `json:"start_time"` // HH:MM, inclusive
	EndTime   string `json:"end_time"`   // HH:MM, exclusive
	Duration  int    `json:"duration"`   // minutes

	BaseAmount     int64 `json:"base_amount"`
	DiscountAmount int64 `json:"discount_amount"`
	FeeAmount      int64 `json:"fee_amount"`
	TotalAmount    int64 `json:"total_amount"`

	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`

	CustomerID int64  `json:"customer_id"`
	Notes      string `json:"notes,omitempty"`

	CreatedBy    int64      `json:"created_by"`
	ConfirmedBy  *int64     `json:"confirmed_by,omitempty"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	CancelledBy  *int64     `json:"cancelled_by,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	RejectedBy   *int64     `json:"rejected_by,omitempty"`
	RejectedAt   *time.Time `json:"rejected_at,omitempty"`
	RejectReason string     `json:"reject_reason,omitempty"`
	CompletedBy  *int64     `json:"completed_by,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ComputeTotal derives total = base - discount + fee.
func ComputeTotal(base, discount, fee int64) int64 {
	return base - discount + fee
}

// StartAt returns the booking start instant in loc.
func (b *Booking) StartAt(loc *time.Location) (time.Time, error) {
	return At(b.Date, b.StartTime, loc)
}

// EndAt returns the booking end instant in loc.
func (b *Booking) EndAt(loc *time.Location) (time.Time, error) {
	return At(b.Date, b.EndTime, loc)
}

// OverlapsWith reports whether both bookings share a field and date and their
// half-open windows intersect. Touching endpoints do not overlap.
func (b *Booking) OverlapsWith(other *Booking) bool {
	if b.FieldID != other.FieldID || b.Date != other.Date {
		return false
	}
	s1, err1 := ParseClock(b.StartTime)
	e1, err2 := ParseClock(b.EndTime)
	s2, err3 := ParseClock(other.StartTime)
	e2, err4 := ParseClock(other.EndTime)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return false
	}
	return Overlaps(s1, e1, s2, e2)
}

// Field is a bookable court with operating hours.
type Field struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OpenTime  string    `json:"open_time"`  // HH:MM
	CloseTime string    `json:"close_time"` // HH:MM, may be 24:00
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Covers reports whether [start, end) lies within the field's operating hours.
func (f *Field) Covers(startMin, endMin int) bool {
	open, err := ParseClock(f.OpenTime)
	if err != nil {
		return false
	}
	closing, err := ParseClock(f.CloseTime)
	if err != nil {
		return false
	}
	return startMin >= open && endMin <= closing
}
