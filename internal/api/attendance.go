package api

import (
	"context"
	"net/http"

	"github.com/shiftsense/client-core/internal/domain"
)

type locationPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// LocationDecision is the backend's verdict on a submitted sample. The
// geofence-membership algorithm is opaque to the client; the decision is
// advisory display state only.
type LocationDecision struct {
	Status       domain.AttendanceStatus `json:"status"`
	Message      string                  `json:"message"`
	GeofenceName string                  `json:"geofenceName,omitempty"`
}

func (c *Client) CheckIn(ctx context.Context, sample domain.LocationSample) (*domain.AttendanceRecord, error) {
	return c.submitAttendance(ctx, "/attendance/check-in", sample)
}

func (c *Client) CheckOut(ctx context.Context, sample domain.LocationSample) (*domain.AttendanceRecord, error) {
	return c.submitAttendance(ctx, "/attendance/check-out", sample)
}

func (c *Client) submitAttendance(ctx context.Context, path string, sample domain.LocationSample) (*domain.AttendanceRecord, error) {
	var record domain.AttendanceRecord
	err := c.do(ctx, http.MethodPost, path, locationPayload{
		Latitude:  sample.Latitude,
		Longitude: sample.Longitude,
		Accuracy:  sample.AccuracyMeters,
	}, &record)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Client) UpdateLocation(ctx context.Context, sample domain.LocationSample) (*LocationDecision, error) {
	var decision LocationDecision
	err := c.do(ctx, http.MethodPost, "/location/update", locationPayload{
		Latitude:  sample.Latitude,
		Longitude: sample.Longitude,
		Accuracy:  sample.AccuracyMeters,
	}, &decision)
	if err != nil {
		return nil, err
	}
	return &decision, nil
}
