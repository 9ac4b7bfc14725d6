package model

import "time"

// Event is one normalized scrap reading. Immutable after creation; only the
// normalizer constructs these.
type Event struct {
	MachineID  string    `json:"machineId"`
	ScrapIndex int       `json:"scrapIndex"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
}

// Key identifies one aggregation stream.
type Key struct {
	MachineID  string `json:"machineId"`
	ScrapIndex int    `json:"scrapIndex"`
}

func (e Event) Key() Key {
	return Key{MachineID: e.MachineID, ScrapIndex: e.ScrapIndex}
}

// Snapshot is a point-in-time aggregate for one key over the trailing window.
// An empty window yields sum 0, avg 0 and count 0, never NaN.
type Snapshot struct {
	MachineID  string    `json:"machineId"`
	ScrapIndex int       `json:"scrapIndex"`
	Sum        float64   `json:"sumLast60s"`
	Avg        float64   `json:"avgLast60s"`
	Count      int       `json:"messageCount"`
	Timestamp  time.Time `json:"timestamp"`
}

// Status is the synchronous health view. It reads only the observer registry
// and the key index, never per-key window state.
type Status struct {
	ObserverCount int `json:"observerCount"`
	KnownKeyCount int `json:"knownKeyCount"`
}
