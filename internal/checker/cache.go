package checker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bookingchecker/internal/components/state"
	"bookingchecker/internal/components/telemetry"
	"bookingchecker/internal/scrapers/elevcentralen"
)

const report_notified_cache_load = "notified-cache.load"

// NotifiedCache remembers the slots of the last notification.
type NotifiedCache struct {
	blob state.Blob
	loc  *time.Location
	tel  telemetry.API
}

func NewNotifiedCache(blob state.Blob, loc *time.Location, tel telemetry.API) NotifiedCache {
	return NotifiedCache{blob: blob, loc: loc, tel: tel}
}

// Load returns the notified slots, a missing or unreadable cache counts as
// empty. An unreadable cache is reported as a warning.
func (c NotifiedCache) Load(ctx context.Context) []elevcentralen.Booking {
	contents, err := c.blob.Load(ctx)
	if errors.Is(err, state.ErrNotFound) {
		return nil
	}
	if err != nil {
		c.tel.ReportWarning(report_notified_cache_load, &elevcentralen.CacheError{
			Location: c.blob.String(),
			Err:      err,
		})
		return nil
	}

	var bookings []elevcentralen.Booking
	err = json.Unmarshal(contents, &bookings)
	if err != nil {
		c.tel.ReportWarning(report_notified_cache_load, &elevcentralen.CacheError{
			Location: c.blob.String(),
			Err:      err,
		})
		return nil
	}
	for i := range bookings {
		bookings[i].Start = bookings[i].Start.In(c.loc)
		bookings[i].End = bookings[i].End.In(c.loc)
	}
	return bookings
}

// Replace overwrites the cache with exactly bookings.
func (c NotifiedCache) Replace(ctx context.Context, bookings []elevcentralen.Booking) error {
	if bookings == nil {
		bookings = []elevcentralen.Booking{}
	}
	serialized, err := json.Marshal(bookings)
	if err != nil {
		return err
	}
	err = c.blob.Save(ctx, serialized)
	if err != nil {
		return &elevcentralen.CacheError{Location: c.blob.String(), Err: err}
	}
	return nil
}
