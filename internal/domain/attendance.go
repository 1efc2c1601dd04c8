package domain

import "time"

type AttendanceStatus string

const (
	StatusCheckedIn       AttendanceStatus = "CHECKED_IN"
	StatusCheckedOut      AttendanceStatus = "CHECKED_OUT"
	StatusAutoCheckedIn   AttendanceStatus = "AUTO_CHECKED_IN"
	StatusAutoCheckedOut  AttendanceStatus = "AUTO_CHECKED_OUT"
	StatusAwaitingCheckIn AttendanceStatus = "AWAITING_FIRST_CHECKIN"
	StatusAbsent          AttendanceStatus = "ABSENT"
	StatusOutside         AttendanceStatus = "OUTSIDE"
	StatusError           AttendanceStatus = "ERROR"
)

// IsAuto reports whether the status was decided server-side from a
// submitted location sample rather than by an explicit user action.
func (s AttendanceStatus) IsAuto() bool {
	return s == StatusAutoCheckedIn || s == StatusAutoCheckedOut
}

// LocationSample is one device fix. Samples are ephemeral: produced once
// per sampling tick, submitted, then discarded except for the most recent.
type LocationSample struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy"`
	CapturedAt     time.Time `json:"captured_at"`
}

type AttendanceRecord struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user_id"`
	Status       AttendanceStatus `json:"status"`
	CheckInTime  *time.Time       `json:"check_in_time,omitempty"`
	CheckOutTime *time.Time       `json:"check_out_time,omitempty"`
	GeofenceName string           `json:"geofence_name,omitempty"`
}
