package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iliyamo/parking-schedule/internal/model"
	"github.com/iliyamo/parking-schedule/internal/store"
)

func TestNewScheduleChangedEvent_FlattensAndSorts(t *testing.T) {
	t.Parallel()

	ch := store.Change{
		Origin: store.OriginLocal,
		Patch: model.Schedule{
			"2025-01-11": {"spot-1": {7: "Shai"}},
			"2025-01-10": {
				"spot-2": {9: "", 8: "Dorit"},
				"spot-1": {19: "Shai"},
			},
		},
	}
	at := time.Date(2025, time.January, 10, 6, 0, 0, 0, time.UTC)
	ev := NewScheduleChangedEvent(ch, at)

	if ev.EventID == "" || ev.Origin != "local" || ev.ChangedAt != "2025-01-10T06:00:00Z" {
		t.Fatalf("unexpected header: %+v", ev)
	}
	want := []SlotChange{
		{Date: "2025-01-10", SpotID: "spot-1", Hour: 19, Occupant: "Shai"},
		{Date: "2025-01-10", SpotID: "spot-2", Hour: 8, Occupant: "Dorit"},
		{Date: "2025-01-10", SpotID: "spot-2", Hour: 9, Occupant: ""},
		{Date: "2025-01-11", SpotID: "spot-1", Hour: 7, Occupant: "Shai"},
	}
	if len(ev.Slots) != len(want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(ev.Slots))
	}
	for i := range want {
		if ev.Slots[i] != want[i] {
			t.Fatalf("slot %d = %+v, want %+v", i, ev.Slots[i], want[i])
		}
	}
}

func TestHandleMessage_AppendsLine(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "logs")
	ev := ScheduleChangedEvent{
		EventID:   "e-1",
		Origin:    "remote",
		ChangedAt: "2025-01-10T06:00:00Z",
		Slots: []SlotChange{
			{Date: "2025-01-10", SpotID: "spot-1", Hour: 7, Occupant: "Shai"},
			{Date: "2025-01-10", SpotID: "spot-1", Hour: 8},
		},
	}
	body, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := HandleMessage(body, dir); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}

	raw, err := os.ReadFile(filepath.Join(dir, "schedule.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	for _, field := range []string{"event_id=e-1", "origin=remote", `2025-01-10/spot-1/07="Shai"`, `2025-01-10/spot-1/08="-"`} {
		if !strings.Contains(lines[0], field) {
			t.Fatalf("log line missing %s: %s", field, lines[0])
		}
	}
}

func TestHandleMessage_RejectsGarbage(t *testing.T) {
	t.Parallel()

	if err := HandleMessage([]byte("{"), t.TempDir()); err == nil {
		t.Fatalf("expected error")
	}
}
