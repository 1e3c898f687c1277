package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"liquidityTrade/internal/model"
)

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "snapshots.jsonl")
	s := NewJsonlStorage(path)
	ctx := context.Background()

	impact := decimal.RequireFromString("0.42")
	first := []model.SnapshotRecord{
		{SessionID: "s1", Seq: 1, Mode: "swap", State: "loading", RecordedAt: time.Unix(1700000000, 0).UTC()},
		{SessionID: "s1", Seq: 2, Mode: "swap", State: "ready", AmountIn: decimal.NewFromInt(1), PriceImpact: &impact},
	}
	if err := s.PutSnapshots(ctx, first); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.PutSnapshots(ctx, nil); err != nil {
		t.Fatalf("put empty: %v", err)
	}
	second := []model.SnapshotRecord{
		{SessionID: "s1", Seq: 3, Mode: "swap", State: "not_ready", Errors: []string{"no_balance"}},
	}
	if err := s.PutSnapshots(ctx, second); err != nil {
		t.Fatalf("put: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var got []model.SnapshotRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec model.SnapshotRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		got = append(got, rec)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	for i, rec := range got {
		if rec.Seq != uint64(i+1) {
			t.Fatalf("record %d has seq %d", i, rec.Seq)
		}
	}
	if got[1].PriceImpact == nil || !got[1].PriceImpact.Equal(impact) {
		t.Fatalf("price impact lost: %v", got[1].PriceImpact)
	}
	if len(got[2].Errors) != 1 || got[2].Errors[0] != "no_balance" {
		t.Fatalf("errors lost: %v", got[2].Errors)
	}
}

type failingRecorder struct{ err error }

func (f failingRecorder) PutSnapshots(context.Context, []model.SnapshotRecord) error { return f.err }

func TestMultiJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	path := filepath.Join(t.TempDir(), "out.jsonl")
	m := Multi{failingRecorder{err: boom}, NewJsonlStorage(path)}

	err := m.PutSnapshots(context.Background(), []model.SnapshotRecord{{SessionID: "s", Seq: 1}})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatalf("second recorder should still run: %v", statErr)
	}
}
