package domain

import "time"

// VerificationDateLayout is the calendar-day key for verification records,
// stamped in the device's local time zone.
const VerificationDateLayout = "2006-01-02"

// VerificationRecord is the date-scoped face-verification result. A record
// whose Date is not the current calendar day is stale and must be treated
// as absent; it is never explicitly deleted, the next day's write simply
// supersedes it.
type VerificationRecord struct {
	Date       string `json:"date"`
	Verified   bool   `json:"verified"`
	Registered bool   `json:"registered"`
}

func (r *VerificationRecord) CurrentFor(now time.Time) bool {
	return r != nil && r.Date == now.Format(VerificationDateLayout)
}
