package models

import "time"

const (
	EventSeriesUpdated = "series.updated"
	EventAnomalies     = "series.anomalies"
)

// SeriesEvent announces a persisted change to the validated series.
type SeriesEvent struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Mode      string         `json:"mode"`
	FirstDate string         `json:"firstDate"`
	LastDate  string         `json:"lastDate"`
	Days      int            `json:"days"`
	Anomalies map[string]int `json:"anomalies,omitempty"`
	At        time.Time      `json:"at"`
}
