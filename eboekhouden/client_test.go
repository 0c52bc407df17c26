package eboekhouden_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"bitbucket.org/mmdatafocus/boekhouden_backend/eboekhouden"
)

func newTestClient(t *testing.T, handler http.Handler) (*eboekhouden.Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	t.Setenv("EBOEKHOUDEN_RATE_LIMIT_PER_MIN", "600000")
	client, err := eboekhouden.NewClient(eboekhouden.Config{
		APIURL:   server.URL,
		APIToken: "test-token",
		Source:   "unit test",
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client, server
}

func sessionHandler(t *testing.T, sessionCount *int, token string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		*sessionCount++
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad session request body: %v", err)
		}
		if req["accessToken"] != "test-token" {
			t.Errorf("session request carried wrong access token %q", req["accessToken"])
		}
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	}
}

func TestClientSessionTokenReuse(t *testing.T) {
	sessionCount := 0
	detailCount := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/session", sessionHandler(t, &sessionCount, "sess-1"))
	mux.HandleFunc("/v1/mutation/42", func(w http.ResponseWriter, r *http.Request) {
		detailCount++
		if r.Header.Get("Authorization") != "sess-1" {
			t.Errorf("expected session token in Authorization header, got %q", r.Header.Get("Authorization"))
		}
		fmt.Fprint(w, `{"id": 42, "type": 2, "date": "2023-06-01", "amount": 100.00}`)
	})

	client, _ := newTestClient(t, mux)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := client.FetchMutationDetail(ctx, 42); err != nil {
			t.Fatalf("FetchMutationDetail returned error: %v", err)
		}
	}
	if sessionCount != 1 {
		t.Fatalf("expected one session request for three calls, got %d", sessionCount)
	}
	if detailCount != 3 {
		t.Fatalf("expected three detail requests, got %d", detailCount)
	}
}

func TestClientRenewsSessionOnUnauthorized(t *testing.T) {
	sessionCount := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/session", func(w http.ResponseWriter, r *http.Request) {
		sessionCount++
		json.NewEncoder(w).Encode(map[string]string{"token": "sess-" + strconv.Itoa(sessionCount)})
	})
	mux.HandleFunc("/v1/mutation/7", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "sess-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"id": 7, "type": 7, "date": "2023-06-01"}`)
	})

	client, _ := newTestClient(t, mux)

	m, err := client.FetchMutationDetail(context.Background(), 7)
	if err != nil {
		t.Fatalf("FetchMutationDetail returned error: %v", err)
	}
	if m.ID != 7 {
		t.Fatalf("unexpected mutation id %d", m.ID)
	}
	if sessionCount != 2 {
		t.Fatalf("expected a second session request after 401, got %d", sessionCount)
	}
}

func TestClientMutationNotFound(t *testing.T) {
	sessionCount := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/session", sessionHandler(t, &sessionCount, "sess-1"))
	mux.HandleFunc("/v1/mutation/999", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	client, _ := newTestClient(t, mux)

	_, err := client.FetchMutationDetail(context.Background(), 999)
	if err != eboekhouden.ErrMutationNotFound {
		t.Fatalf("expected ErrMutationNotFound, got %v", err)
	}
}

func TestClientLedgerPaginationStopsOnShortPage(t *testing.T) {
	sessionCount := 0
	var offsets []int

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/session", sessionHandler(t, &sessionCount, "sess-1"))
	mux.HandleFunc("/v1/ledger", func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offsets = append(offsets, offset)

		// First page full, second page short.
		count := limit
		if offset > 0 {
			count = 3
		}
		items := make([]map[string]interface{}, count)
		for i := range items {
			items[i] = map[string]interface{}{
				"id":          offset + i + 1,
				"code":        fmt.Sprintf("%05d", offset+i+1),
				"description": "Ledger",
				"category":    "BAL",
			}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"items": items})
	})

	client, _ := newTestClient(t, mux)

	ledgers, err := client.FetchLedgers(context.Background())
	if err != nil {
		t.Fatalf("FetchLedgers returned error: %v", err)
	}
	if len(ledgers) != 503 {
		t.Fatalf("expected 503 ledgers, got %d", len(ledgers))
	}
	if len(offsets) != 2 || offsets[0] != 0 || offsets[1] != 500 {
		t.Fatalf("unexpected pagination offsets %v", offsets)
	}
}

func TestClientEstimateIDRange(t *testing.T) {
	sessionCount := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/session", sessionHandler(t, &sessionCount, "sess-1"))
	mux.HandleFunc("/v1/mutation/", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.URL.Path[len("/v1/mutation/"):])
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		// Administration holds mutations 0 through 1040.
		if id < 0 || id > 1040 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `{"id": %d, "type": 7, "date": "2023-01-01"}`, id)
	})

	client, _ := newTestClient(t, mux)

	idRange, err := client.EstimateIDRange(context.Background())
	if err != nil {
		t.Fatalf("EstimateIDRange returned error: %v", err)
	}
	if !idRange.Found {
		t.Fatal("expected range to be found")
	}
	if idRange.LowestId != 0 {
		t.Fatalf("expected lowest id 0, got %d", idRange.LowestId)
	}
	if idRange.HighestId != 1040 {
		t.Fatalf("expected highest id 1040, got %d", idRange.HighestId)
	}
}

func TestClientRequiresToken(t *testing.T) {
	if _, err := eboekhouden.NewClient(eboekhouden.Config{}); err == nil {
		t.Fatal("expected error for empty api token")
	}
}
