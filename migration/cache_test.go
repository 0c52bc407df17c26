package migration

import (
	"context"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/boekhouden_backend/eboekhouden"
)

func scanMutation(id int, mutationType eboekhouden.MutationType) *eboekhouden.Mutation {
	return &eboekhouden.Mutation{
		ID:     id,
		Type:   mutationType,
		Date:   time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC),
		Amount: dec("10.00"),
	}
}

func TestScanAndCacheRange_CachesFoundMutations(t *testing.T) {
	store := newFakeStore()
	api := newFakeAPI()
	api.mutations[1] = scanMutation(1, eboekhouden.MutationTypeOpeningBalance)
	api.mutations[2] = scanMutation(2, eboekhouden.MutationTypeSalesInvoice)
	api.mutations[4] = scanMutation(4, eboekhouden.MutationTypeMemorial)

	scanner := NewCacheScanner(api, testLogger())
	result, err := scanner.ScanAndCacheRange(context.Background(), store, 1, 5)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if result.Cached != 3 {
		t.Fatalf("cached = %d, expected 3", result.Cached)
	}
	if result.NotFound != 2 {
		t.Fatalf("not found = %d, expected 2", result.NotFound)
	}
	if len(store.cache) != 3 {
		t.Fatalf("cache rows = %d", len(store.cache))
	}

	// Cached payloads decode back into the original mutation.
	entries, err := store.CachedMutationsByType(context.Background(), int(eboekhouden.MutationTypeSalesInvoice))
	if err != nil || len(entries) != 1 {
		t.Fatalf("cached sales mutations: %v %d", err, len(entries))
	}
	decoded, err := ParseCachedMutation(entries[0])
	if err != nil {
		t.Fatalf("ParseCachedMutation error: %v", err)
	}
	if decoded.ID != 2 || decoded.Type != eboekhouden.MutationTypeSalesInvoice || !decoded.Amount.Equal(dec("10.00")) {
		t.Fatalf("decoded mutation = %+v", decoded)
	}
}

func TestScanAndCacheRange_ResumeSkipsCachedIdsWithoutFetch(t *testing.T) {
	store := newFakeStore()
	api := newFakeAPI()
	api.mutations[1] = scanMutation(1, eboekhouden.MutationTypeSalesInvoice)
	api.mutations[2] = scanMutation(2, eboekhouden.MutationTypeSalesInvoice)
	api.mutations[3] = scanMutation(3, eboekhouden.MutationTypeSalesInvoice)

	scanner := NewCacheScanner(api, testLogger())
	if _, err := scanner.ScanAndCacheRange(context.Background(), store, 1, 2); err != nil {
		t.Fatalf("first scan error: %v", err)
	}
	firstCalls := api.detailCalls

	// The second pass over the same range must not refetch ids 1 and 2.
	result, err := scanner.ScanAndCacheRange(context.Background(), store, 1, 3)
	if err != nil {
		t.Fatalf("second scan error: %v", err)
	}
	if result.Skipped != 2 {
		t.Fatalf("skipped = %d, expected 2", result.Skipped)
	}
	if result.Cached != 1 {
		t.Fatalf("cached = %d, expected 1", result.Cached)
	}
	if api.detailCalls != firstCalls+1 {
		t.Fatalf("detail calls = %d after resume, expected %d", api.detailCalls, firstCalls+1)
	}
}

func TestScanAndCacheRange_StopsAfterConsecutiveMisses(t *testing.T) {
	store := newFakeStore()
	api := newFakeAPI()
	api.mutations[1] = scanMutation(1, eboekhouden.MutationTypeSalesInvoice)
	// Ids 2..10000 do not exist; the scan must not walk the whole range.

	scanner := NewCacheScanner(api, testLogger())
	scanner.maxConsecutiveMisses = 5
	result, err := scanner.ScanAndCacheRange(context.Background(), store, 1, 10000)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if result.Cached != 1 {
		t.Fatalf("cached = %d, expected 1", result.Cached)
	}
	if result.StoppedAt != 6 {
		t.Fatalf("stopped at %d, expected 6", result.StoppedAt)
	}
	if api.detailCalls != 6 {
		t.Fatalf("detail calls = %d, expected 6", api.detailCalls)
	}
}

func TestScanAndCacheRange_MissRunResetsOnHit(t *testing.T) {
	store := newFakeStore()
	api := newFakeAPI()
	// Gaps shorter than the threshold must not stop the scan.
	api.mutations[1] = scanMutation(1, eboekhouden.MutationTypeSalesInvoice)
	api.mutations[5] = scanMutation(5, eboekhouden.MutationTypeSalesInvoice)
	api.mutations[9] = scanMutation(9, eboekhouden.MutationTypeSalesInvoice)

	scanner := NewCacheScanner(api, testLogger())
	scanner.maxConsecutiveMisses = 4
	result, err := scanner.ScanAndCacheRange(context.Background(), store, 1, 9)
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if result.Cached != 3 {
		t.Fatalf("cached = %d, expected 3", result.Cached)
	}
	if result.StoppedAt != 9 {
		t.Fatalf("stopped at %d, expected 9", result.StoppedAt)
	}
}

func TestScanAndCacheRange_ContextCancellation(t *testing.T) {
	store := newFakeStore()
	api := newFakeAPI()
	api.mutations[1] = scanMutation(1, eboekhouden.MutationTypeSalesInvoice)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scanner := NewCacheScanner(api, testLogger())
	_, err := scanner.ScanAndCacheRange(ctx, store, 1, 100)
	if err == nil {
		t.Fatal("cancelled scan must return the context error")
	}
	if api.detailCalls != 0 {
		t.Fatalf("detail calls = %d after cancellation, expected 0", api.detailCalls)
	}
}
