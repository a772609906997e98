package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/iliyamo/parking-schedule/internal/model"
	"github.com/iliyamo/parking-schedule/internal/repository"
)

func TestLoad_MissingOrCorruptIsEmpty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blob := repository.NewMemoryBlobRepo()
	if got := Load(ctx, blob); len(got) != 0 || got == nil {
		t.Fatalf("expected empty non-nil schedule, got %#v", got)
	}

	for _, raw := range []string{"not json", `{"2025-01-10":{"spot-1":{"seven":"x"}}}`, `[1,2]`, `null`} {
		if err := blob.Write(ctx, []byte(raw)); err != nil {
			t.Fatalf("write: %v", err)
		}
		if got := Load(ctx, blob); len(got) != 0 || got == nil {
			t.Fatalf("expected empty schedule for %q, got %#v", raw, got)
		}
	}
}

func TestPersistLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blob := repository.NewFileBlobRepo(filepath.Join(t.TempDir(), "parkingSchedule.json"))
	s := model.Schedule{
		"2025-01-10": {
			"spot-1":     {7: "Shai", 8: ""},
			"blocking-2": {19: "Moshe 0521234567"},
		},
		"2025-01-11": {},
	}
	if err := Persist(ctx, blob, s); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if got := Load(ctx, blob); !reflect.DeepEqual(got, s) {
		t.Fatalf("round trip mismatch:\n got=%v\nwant=%v", got, s)
	}
}

func TestStore_ApplyMergesPersistsAndNotifies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blob := repository.NewMemoryBlobRepo()
	st := New(blob)
	st.Load(ctx)

	var got []Change
	cancel := st.Subscribe(func(ch Change) { got = append(got, ch) })

	first := model.Patch("2025-01-10", "spot-1", model.SpotHours{7: "Shai"})
	if _, err := st.Apply(ctx, first, OriginLocal, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}
	second := model.Patch("2025-01-10", "spot-1", model.SpotHours{8: "Dorit"})
	out, err := st.Apply(ctx, second, OriginRemote, "peer-1")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	want := model.Schedule{"2025-01-10": {"spot-1": {7: "Shai", 8: "Dorit"}}}
	if !reflect.DeepEqual(out, want) {
		t.Fatalf("apply result = %v, want %v", out, want)
	}
	if persisted := Load(ctx, blob); !reflect.DeepEqual(persisted, want) {
		t.Fatalf("persisted = %v, want %v", persisted, want)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(got))
	}
	if got[0].Origin != OriginLocal || got[1].Origin != OriginRemote || got[1].Source != "peer-1" {
		t.Fatalf("unexpected changes: %+v", got)
	}
	if !reflect.DeepEqual(got[1].Patch, second) {
		t.Fatalf("listener should receive the patch only, got %v", got[1].Patch)
	}

	cancel()
	cancel()
	if _, err := st.Apply(ctx, first, OriginLocal, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("cancelled listener still notified")
	}
}

func TestStore_FailedPersistLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blob := repository.NewMemoryBlobRepo()
	st := New(blob)
	if _, err := st.Apply(ctx, model.Patch("2025-01-10", "spot-1", model.SpotHours{7: "Shai"}), OriginLocal, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}

	notified := false
	st.Subscribe(func(Change) { notified = true })

	blob.WriteErr = errors.New("disk full")
	_, err := st.Apply(ctx, model.Patch("2025-01-10", "spot-1", model.SpotHours{7: ""}), OriginLocal, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if v, _ := st.Snapshot().Lookup("2025-01-10", "spot-1", 7); v != "Shai" {
		t.Fatalf("in-memory schedule changed after failed persist: %q", v)
	}
	if notified {
		t.Fatalf("listener notified about failed change")
	}
}

func TestStore_ReadsReturnCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := New(repository.NewMemoryBlobRepo())
	if _, err := st.Apply(ctx, model.Patch("2025-01-10", "spot-1", model.SpotHours{7: "Shai"}), OriginLocal, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}

	st.SpotHours("2025-01-10", "spot-1")[7] = "mutated"
	st.Day("2025-01-10")["spot-1"][7] = "mutated"
	st.Snapshot()["2025-01-10"]["spot-1"][7] = "mutated"

	if v, _ := st.Snapshot().Lookup("2025-01-10", "spot-1", 7); v != "Shai" {
		t.Fatalf("store state leaked through a read helper: %q", v)
	}
	if len(st.Day("2099-01-01")) != 0 {
		t.Fatalf("expected empty day")
	}
}

func TestStore_ConcurrentApply(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	blob := repository.NewMemoryBlobRepo()
	st := New(blob)

	var wg sync.WaitGroup
	for _, h := range model.Hours() {
		wg.Add(1)
		go func(hour int) {
			defer wg.Done()
			if _, err := st.Apply(ctx, model.Patch("2025-01-10", "spot-1", model.SpotHours{hour: "Shai"}), OriginLocal, nil); err != nil {
				t.Errorf("apply: %v", err)
			}
		}(h)
	}
	wg.Wait()

	if got := len(Load(ctx, blob)["2025-01-10"]["spot-1"]); got != len(model.Hours()) {
		t.Fatalf("expected all hours persisted, got %d", got)
	}
}

func TestStore_NotifiesInCommitOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := New(repository.NewMemoryBlobRepo())

	var (
		mu   sync.Mutex
		seen []string
	)
	st.Subscribe(func(ch Change) {
		// reading the store from a listener must not deadlock
		_ = st.SpotHours("2025-01-10", "spot-1")
		mu.Lock()
		seen = append(seen, ch.Patch["2025-01-10"]["spot-1"][7])
		mu.Unlock()
	})

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			patch := model.Patch("2025-01-10", "spot-1", model.SpotHours{7: fmt.Sprintf("driver %d", i)})
			if _, err := st.Apply(ctx, patch, OriginLocal, nil); err != nil {
				t.Errorf("apply: %v", err)
			}
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != writers {
		t.Fatalf("expected %d notifications, got %d", writers, len(seen))
	}
	stored, _ := st.Snapshot().Lookup("2025-01-10", "spot-1", 7)
	if last := seen[len(seen)-1]; last != stored {
		t.Fatalf("last notified value %q differs from stored value %q", last, stored)
	}
}

func TestStore_LoadWarnsAboutStrayKeys(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	ctx := context.Background()
	blob := repository.NewMemoryBlobRepo()
	raw := `{"10/01/2025":{"spot-1":{"7":"Shai"}},"2025-01-10":{"spot-1":{"7":"Shai","99":"Ghost"},"spot-99":{"8":"Nobody"}}}`
	if err := blob.Write(ctx, []byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}

	st := New(blob, WithKnownSpots(func(id string) bool { return id == "spot-1" }))
	loaded := st.Load(ctx)

	// stray keys are kept, only reported
	if len(loaded) != 2 || len(loaded["2025-01-10"]) != 2 {
		t.Fatalf("stray keys should be tolerated, got %v", loaded)
	}
	out := buf.String()
	for _, want := range []string{
		`malformed date key "10/01/2025"`,
		`unknown spot "spot-99"`,
		"out-of-range hour 99",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log is missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, `unknown spot "spot-1"`) {
		t.Errorf("known spot reported as stray:\n%s", out)
	}
}
