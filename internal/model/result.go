package model

import "time"

// LogTimeLayout is the layout of LogEntry timestamps.
const LogTimeLayout = "2006-01-02 15:04:05"

// Result is the stored parcels payload for one completed lookup.
// Data holds a JSON array of parcel objects.
type Result struct {
	ID       int64  `json:"id"`
	OriginID int64  `json:"origin_id"`
	Data     string `json:"data"`
}

// LogEntry is one row of the append-only audit trail.
type LogEntry struct {
	Message   string `json:"log"`
	Timestamp string `json:"timestamp"`
}

// NewLogEntry stamps msg with now rendered in loc.
func NewLogEntry(msg string, now time.Time, loc *time.Location) LogEntry {
	if loc == nil {
		loc = time.Local
	}
	return LogEntry{Message: msg, Timestamp: now.In(loc).Format(LogTimeLayout)}
}

// ResultEvent announces a stored result to downstream consumers.
type ResultEvent struct {
	RunID    string  `json:"run_id"`
	ResultID int64   `json:"result_id"`
	OriginID int64   `json:"origin_id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Parcels  int     `json:"parcels"`
}

// ScrapeRow is one line of the per-run scrape snapshot.
type ScrapeRow struct {
	Lat      float64 `json:"lat" csv:"lat"`
	Lng      float64 `json:"lng" csv:"lng"`
	Status   Status  `json:"status" csv:"status"`
	Response string  `json:"response" csv:"response"`
}
