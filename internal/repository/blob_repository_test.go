package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const payload = `{"2025-01-10":{"spot-1":{"7":"Shai"}}}`

func TestFileBlobRepo_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "parkingSchedule.json")
	repo := NewFileBlobRepo(path)
	ctx := context.Background()

	if _, err := repo.Read(ctx); !errors.Is(err, ErrBlobNotFound) {
		t.Fatalf("expected ErrBlobNotFound, got %v", err)
	}
	if err := repo.Write(ctx, []byte(payload)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := repo.Write(ctx, []byte(payload)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := repo.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != payload {
		t.Fatalf("payload mismatch: %s", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the schedule file, found %d entries", len(entries))
	}
}

func TestRedisBlobRepo_RoundTrip(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := NewRedisBlobRepo(rdb, "parkingSchedule")
	ctx := context.Background()

	if _, err := repo.Read(ctx); !errors.Is(err, ErrBlobNotFound) {
		t.Fatalf("expected ErrBlobNotFound, got %v", err)
	}
	if err := repo.Write(ctx, []byte(payload)); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := repo.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != payload {
		t.Fatalf("payload mismatch: %s", got)
	}
	if stored, _ := mr.Get("parkingSchedule"); stored != payload {
		t.Fatalf("unexpected stored value: %s", stored)
	}
	if ttl := mr.TTL("parkingSchedule"); ttl != 0 {
		t.Fatalf("expected no expiry, got %v", ttl)
	}
}

func TestMySQLBlobRepo(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	repo := NewMySQLBlobRepo(db, "parkingSchedule")
	ctx := context.Background()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schedule_blobs`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT payload FROM schedule_blobs WHERE name = \?`).
		WithArgs("parkingSchedule").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))
	mock.ExpectExec(`INSERT INTO schedule_blobs \(name, payload\) VALUES \(\?, \?\)`).
		WithArgs("parkingSchedule", payload).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT payload FROM schedule_blobs WHERE name = \?`).
		WithArgs("parkingSchedule").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if _, err := repo.Read(ctx); !errors.Is(err, ErrBlobNotFound) {
		t.Fatalf("expected ErrBlobNotFound, got %v", err)
	}
	if err := repo.Write(ctx, []byte(payload)); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := repo.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != payload {
		t.Fatalf("payload mismatch: %s", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMemoryBlobRepo(t *testing.T) {
	t.Parallel()

	repo := NewMemoryBlobRepo()
	ctx := context.Background()
	if _, err := repo.Read(ctx); !errors.Is(err, ErrBlobNotFound) {
		t.Fatalf("expected ErrBlobNotFound, got %v", err)
	}

	in := []byte(payload)
	if err := repo.Write(ctx, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	in[0] = 'x'
	got, _ := repo.Read(ctx)
	if string(got) != payload {
		t.Fatalf("stored blob aliases caller slice: %s", got)
	}

	repo.WriteErr = errors.New("disk full")
	if err := repo.Write(ctx, []byte("{}")); err == nil {
		t.Fatalf("expected write error")
	}
	if repo.Writes() != 1 {
		t.Fatalf("expected 1 write, got %d", repo.Writes())
	}
}
