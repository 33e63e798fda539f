package journal_test

import (
	"context"
	"testing"
	"time"

	"tidesync/internal/activity"
	"tidesync/internal/status"
	"tidesync/internal/testsupport"
)

func TestActivityRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)

	store.Record(activity.NewEvent("sync.start", map[string]any{"host": "seedbox.example.com"}))
	store.RecordError("dial failed")

	entries, err := store.RecentEntries(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != "error" || entries[0].Details["message"] != "dial failed" {
		t.Fatalf("unexpected newest entry: %+v", entries[0])
	}
	if entries[1].Action != "sync.start" || entries[1].Details["host"] != "seedbox.example.com" {
		t.Fatalf("unexpected entry: %+v", entries[1])
	}
}

func TestTransferHistoryRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	ctx := context.Background()

	completed := time.Now().UTC().Truncate(time.Millisecond)
	success := status.FileTransfer{
		ID:          "id-1",
		Filename:    "movie.mkv",
		Size:        4096,
		TargetPath:  "/library/movie.mkv",
		Status:      status.TransferSuccess,
		CompletedAt: &completed,
	}
	failure := status.FileTransfer{
		ID:           "id-2",
		Filename:     "show.mkv",
		Size:         2048,
		TargetPath:   "/library/show.mkv",
		Status:       status.TransferFailure,
		ErrorMessage: "size mismatch",
		CompletedAt:  &completed,
	}
	pending := status.FileTransfer{ID: "id-3", Filename: "ignored.mkv", Status: status.TransferInProgress}

	for _, tr := range []status.FileTransfer{success, failure, pending} {
		if err := store.RecordTransfer(ctx, tr); err != nil {
			t.Fatalf("RecordTransfer(%s): %v", tr.ID, err)
		}
	}

	transfers, err := store.RecentTransfers(ctx, 10)
	if err != nil {
		t.Fatalf("RecentTransfers: %v", err)
	}
	if len(transfers) != 2 {
		t.Fatalf("in-progress transfers must not persist; got %d records", len(transfers))
	}
	if transfers[0].ID != "id-2" || transfers[0].ErrorMessage != "size mismatch" {
		t.Fatalf("unexpected newest transfer: %+v", transfers[0])
	}
	if transfers[1].ID != "id-1" || transfers[1].Size != 4096 {
		t.Fatalf("unexpected transfer: %+v", transfers[1])
	}
	if transfers[1].CompletedAt == nil || !transfers[1].CompletedAt.Equal(completed) {
		t.Fatalf("completed_at did not round trip: %v", transfers[1].CompletedAt)
	}
}

func TestLastSyncTimePersists(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenJournal(t, cfg)
	ctx := context.Background()

	if _, ok, err := store.LastSyncTime(ctx); err != nil || ok {
		t.Fatalf("fresh store should have no last sync: ok=%v err=%v", ok, err)
	}

	want := time.Now().UTC().Truncate(time.Second)
	if err := store.SetLastSyncTime(ctx, want); err != nil {
		t.Fatalf("SetLastSyncTime: %v", err)
	}

	got, ok, err := store.LastSyncTime(ctx)
	if err != nil || !ok {
		t.Fatalf("LastSyncTime: ok=%v err=%v", ok, err)
	}
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}

	// Overwrite keeps a single row.
	later := want.Add(time.Hour)
	if err := store.SetLastSyncTime(ctx, later); err != nil {
		t.Fatalf("SetLastSyncTime again: %v", err)
	}
	got, _, _ = store.LastSyncTime(ctx)
	if !got.Equal(later) {
		t.Fatalf("got %v want %v", got, later)
	}
}
