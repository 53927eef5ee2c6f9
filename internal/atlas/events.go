package atlas

import "time"

// RegionColor is one row of a recolor batch as it goes over the wire.
type RegionColor struct {
	RegionID string `json:"region_id"`
	Index    int    `json:"index"`
	Color    string `json:"color"`
	Rating   string `json:"rating"`
}

// RecolorEvent carries a full recolor batch. Consumers replace their
// entire color state with the payload; rows arrive in dataset order.
type RecolorEvent struct {
	BatchID   string        `json:"batch_id"`
	SessionID string        `json:"session_id"`
	Seq       uint64        `json:"seq"`
	Dataset   string        `json:"dataset"`
	Palette   string        `json:"palette"`
	Regions   []RegionColor `json:"regions"`
	Timestamp time.Time     `json:"timestamp"`
}

type NarrativeReadyEvent struct {
	SessionID string    `json:"session_id"`
	RegionID  string    `json:"region_id,omitempty"`
	Slot      string    `json:"slot"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// RegionSelectedEvent arrives from map frontends when a region is
// clicked.
type RegionSelectedEvent struct {
	SessionID string `json:"session_id"`
	RegionID  string `json:"region_id"`
}

type DatasetActivatedEvent struct {
	Dataset   string    `json:"dataset"`
	Regions   int       `json:"regions"`
	Timestamp time.Time `json:"timestamp"`
}
