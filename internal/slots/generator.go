// Package slots lays a field's operating hours out as fixed-length slots and
// marks which ones are free.
package slots

import (
	"fmt"
	"time"

	"fieldbooking/internal/models"
)

// DefaultDuration is the slot length when none is requested.
const DefaultDuration = 60

// SlotInfo is one slot of a day.
type SlotInfo struct {
	Start     string `json:"start"` // "10:00"
	End       string `json:"end"`   // "11:00"
	Available bool   `json:"available"`
}

// Generate returns the slots of field on date. A slot is unavailable when it
// overlaps a live booking or starts before now.
func Generate(field *models.Field, date string, durationMin int, bookings []models.Booking, now time.Time, loc *time.Location) ([]SlotInfo, error) {
	if !field.IsActive {
		return nil, nil
	}
	if durationMin <= 0 {
		durationMin = DefaultDuration
	}

	open, err := models.ParseClock(field.OpenTime)
	if err != nil {
		return nil, fmt.Errorf("parse open time: %w", err)
	}
	closing, err := models.ParseClock(field.CloseTime)
	if err != nil {
		return nil, fmt.Errorf("parse close time: %w", err)
	}
	if _, err := models.ParseDate(date, loc); err != nil {
		return nil, err
	}

	type window struct{ start, end int }
	var busy []window
	for i := range bookings {
		b := &bookings[i]
		if b.FieldID != field.ID || b.Date != date || !b.Status.IsLive() {
			continue
		}
		s, err1 := models.ParseClock(b.StartTime)
		e, err2 := models.ParseClock(b.EndTime)
		if err1 != nil || err2 != nil {
			continue
		}
		busy = append(busy, window{s, e})
	}

	var out []SlotInfo
	for cursor := open; cursor+durationMin <= closing; cursor += durationMin {
		end := cursor + durationMin
		startAt, err := models.At(date, models.FormatClock(cursor), loc)
		if err != nil {
			return nil, err
		}
		free := !startAt.Before(now)
		for _, w := range busy {
			if !free {
				break
			}
			if models.Overlaps(cursor, end, w.start, w.end) {
				free = false
			}
		}
		out = append(out, SlotInfo{
			Start:     models.FormatClock(cursor),
			End:       models.FormatClock(end),
			Available: free,
		})
	}
	return out, nil
}

// FilterAvailable returns only the free slots.
func FilterAvailable(all []SlotInfo) []SlotInfo {
	var out []SlotInfo
	for _, s := range all {
		if s.Available {
			out = append(out, s)
		}
	}
	return out
}
