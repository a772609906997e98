package remote

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iliyamo/parking-schedule/internal/model"
)

// MessageType names a sync frame.
type MessageType string

const (
	// TypeGetData asks the other side for one date's schedule.
	TypeGetData MessageType = "GET_DATA"
	// TypeUpdateSchedule carries a locally made patch upstream.
	TypeUpdateSchedule MessageType = "UPDATE_SCHEDULE"
	// TypeScheduleUpdate carries a patch downstream.
	TypeScheduleUpdate MessageType = "SCHEDULE_UPDATE"
)

// Message is one JSON text frame on a sync connection.
type Message struct {
	Type     MessageType    `json:"type"`
	Date     string         `json:"date,omitempty"`
	Schedule model.Schedule `json:"schedule"`
}

// getData is the wire shape of GET_DATA, which carries no schedule.
type getData struct {
	Type MessageType `json:"type"`
	Date string      `json:"date"`
}

var errMissingSchedule = errors.New("missing schedule")

// Encode renders m as a text frame payload.  Patch-bearing frames always
// include schedule, even when the patch is empty.
func Encode(m Message) ([]byte, error) {
	if m.Type == TypeGetData {
		return json.Marshal(getData{Type: m.Type, Date: m.Date})
	}
	if m.Schedule == nil {
		m.Schedule = model.Schedule{}
	}
	return json.Marshal(m)
}

// Decode parses a text frame.  Frames that carry a patch must include it.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode sync message: %w", err)
	}
	switch m.Type {
	case "":
		return Message{}, errors.New("decode sync message: missing type")
	case TypeUpdateSchedule, TypeScheduleUpdate:
		if m.Schedule == nil {
			return Message{}, fmt.Errorf("decode %s: %w", m.Type, errMissingSchedule)
		}
	}
	return m, nil
}
