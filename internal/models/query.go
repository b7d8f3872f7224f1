package models

import "time"

// QueryParams filters stored signal rows
type QueryParams struct {
	StartTime *time.Time
	EndTime   *time.Time
	CANID     *uint32
	Interface string
	Message   string
	Signal    string
	Limit     int
	Offset    int
}

// SignalRecord is one stored signal value returned by history queries
type SignalRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Session   string    `json:"session"`
	Interface string    `json:"interface"`
	CANID     uint32    `json:"can_id"`
	CANIDHex  string    `json:"can_id_hex"`
	Message   string    `json:"message"`
	Signal    string    `json:"signal"`
	Value     float32   `json:"value"`
	Unit      string    `json:"unit,omitempty"`
}
