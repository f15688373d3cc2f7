package cache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/joseph-ayodele/retypeset/internal/entity"
)

func testContent(fp entity.Fingerprint) *entity.ExtractedContent {
	return &entity.ExtractedContent{
		Fingerprint: fp,
		PageIndex:   2,
		Kind:        entity.ContentMixed,
		Lines: []entity.Line{
			{Text: "first line", Confidence: 0.95},
			{Text: "seccnd l1ne", Confidence: 0.41, LowConfidence: true},
		},
		Tables: []entity.Table{{
			Cells: [][]entity.Cell{
				{{Text: "a", Confidence: 0.9}, {Text: "", Confidence: 0}},
				{{Text: "c", Confidence: 0.8}, {Text: "d", Confidence: 0.7}},
			},
		}},
	}
}

func fpOf(b byte) entity.Fingerprint {
	var fp entity.Fingerprint
	fp[0] = b
	return fp
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	rc := New(store, nil)
	fp := fpOf(1)
	want := testContent(fp)

	if rc.Contains(ctx, fp) {
		t.Fatal("empty cache reports contains")
	}
	if err := rc.Put(ctx, fp, want); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok := rc.Get(ctx, fp)
	if !ok {
		t.Fatal("get after put missed")
	}
	if got.PageIndex != want.PageIndex || len(got.Lines) != 2 || len(got.Tables) != 1 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Lines[0].Text != "first line" || !got.Lines[1].LowConfidence {
		t.Fatalf("line order or flags lost: %+v", got.Lines)
	}
	if got.Tables[0].Cells[0][1].Text != "" {
		t.Fatal("empty cell not preserved")
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	fp := fpOf(7)
	want := testContent(fp)

	store, err := OpenSQLite(ctx, path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rc := New(store, nil)
	if err := rc.Put(ctx, fp, want); err != nil {
		t.Fatalf("put: %v", err)
	}
	// Idempotent overwrite must not error.
	if err := rc.Put(ctx, fp, want); err != nil {
		t.Fatalf("second put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Simulated process restart: reopen the same file.
	store2, err := OpenSQLite(ctx, path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store2.Close()
	rc2 := New(store2, nil)

	got, ok := rc2.Get(ctx, fp)
	if !ok {
		t.Fatal("entry lost across reopen")
	}
	if got.Lines[1].Text != want.Lines[1].Text {
		t.Fatalf("content changed across reopen: %+v", got)
	}
	if _, ok := rc2.Get(ctx, fpOf(99)); ok {
		t.Fatal("absent fingerprint reported as hit")
	}
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	fp := fpOf(3)
	if err := store.Put(ctx, fp, []byte("{not json")); err != nil {
		t.Fatalf("raw put: %v", err)
	}
	rc := New(store, nil)
	if _, ok := rc.Get(ctx, fp); ok {
		t.Fatal("corrupt entry served as a hit")
	}

	// A decodable entry violating the grid invariant is equally a miss.
	ragged := []byte(`{"fingerprint":[0],"page_index":0,"kind":"TABLE","tables":[{"cells":[[{"text":"a"}],[{"text":"b"},{"text":"c"}]]}]}`)
	if err := store.Put(ctx, fp, ragged); err != nil {
		t.Fatalf("raw put: %v", err)
	}
	if _, ok := rc.Get(ctx, fp); ok {
		t.Fatal("ragged table entry served as a hit")
	}
}

func TestGetOrComputeSingleFlight(t *testing.T) {
	ctx := context.Background()
	rc := New(NewMemoryStore(), nil)
	fp := fpOf(5)

	var computes atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (*entity.ExtractedContent, error) {
		computes.Add(1)
		<-release
		return testContent(fp), nil
	}

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = rc.GetOrCompute(ctx, fp, compute)
		}(i)
	}
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	if n := computes.Load(); n != 1 {
		t.Fatalf("compute ran %d times, want 1", n)
	}

	// A later call is a plain hit.
	_, cached, err := rc.GetOrCompute(ctx, fp, func(context.Context) (*entity.ExtractedContent, error) {
		t.Fatal("compute ran on a warm cache")
		return nil, nil
	})
	if err != nil || !cached {
		t.Fatalf("warm lookup: cached=%v err=%v", cached, err)
	}
}

func TestGetOrComputePropagatesComputeError(t *testing.T) {
	ctx := context.Background()
	rc := New(NewMemoryStore(), nil)
	fp := fpOf(9)

	wantErr := errors.New("recognize blew up")
	_, _, err := rc.GetOrCompute(ctx, fp, func(context.Context) (*entity.ExtractedContent, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want compute error", err)
	}
	// Nothing may be stored after a failed compute.
	if rc.Contains(ctx, fp) {
		t.Fatal("failed compute left a cache entry")
	}
}

func TestEncodeRejectsRaggedTable(t *testing.T) {
	content := testContent(fpOf(1))
	content.Tables[0].Cells[1] = content.Tables[0].Cells[1][:1]
	if _, err := Encode(content); err == nil {
		t.Fatal("ragged table encoded without error")
	}
}

func TestSQLiteAdminListAndClear(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "cache.db"), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	for i := byte(1); i <= 3; i++ {
		blob, _ := Encode(testContent(fpOf(i)))
		if err := store.Put(ctx, fpOf(i), blob); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}
	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("listed %d entries, want 3", len(entries))
	}
	n, err := store.DeleteAll(ctx)
	if err != nil || n != 3 {
		t.Fatalf("clear: n=%d err=%v", n, err)
	}
	if ok, _ := store.Contains(ctx, fpOf(1)); ok {
		t.Fatal("entry survived clear")
	}
}
