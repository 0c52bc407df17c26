package migration

import (
	"context"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/boekhouden_backend/eboekhouden"
	"bitbucket.org/mmdatafocus/boekhouden_backend/models"
)

func TestPlaceholderPartyName(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"Betaling  huur   januari", "Betaling huur januari (eBoekhouden Import)"},
		{"", "Unknown Relation (eBoekhouden Import)"},
		{"   ", "Unknown Relation (eBoekhouden Import)"},
	}
	for _, tc := range cases {
		if got := placeholderPartyName(tc.in); got != tc.expected {
			t.Fatalf("placeholderPartyName(%q) = %q, expected %q", tc.in, got, tc.expected)
		}
	}

	long := placeholderPartyName(strings.Repeat("a", 100))
	if !strings.HasSuffix(long, placeholderSuffix) {
		t.Fatalf("long name lost the suffix: %q", long)
	}
	if len(long) > placeholderNameLimit+len(placeholderSuffix) {
		t.Fatalf("long name not truncated: %d chars", len(long))
	}
}

func TestResolveCustomer_ExistingRelationIdWins(t *testing.T) {
	store := newFakeStore()
	api := newFakeAPI()
	existing, err := store.CreateCustomer(context.Background(), &models.NewCustomer{
		Name:                  "Bakkerij Jansen",
		EboekhoudenRelationId: intPtr(12),
	})
	if err != nil {
		t.Fatalf("seeding customer: %v", err)
	}

	resolver := NewPartyResolver(api, "Demo BV", testLogger())
	customer, err := resolver.ResolveCustomer(context.Background(), store, intPtr(12), "betaling")
	if err != nil {
		t.Fatalf("ResolveCustomer error: %v", err)
	}
	if customer.ID != existing.ID {
		t.Fatalf("resolved customer %d, expected existing %d", customer.ID, existing.ID)
	}
	if api.detailCalls != 0 {
		t.Fatal("existing customer should resolve without an API call")
	}
}

func TestResolveCustomer_CreatesFromRelationPayload(t *testing.T) {
	store := newFakeStore()
	api := newFakeAPI()
	api.relations[15] = &eboekhouden.Relation{
		ID:          15,
		CompanyName: "Bakkerij Jansen",
		Address:     "Dorpsstraat 1",
		Postcode:    "1234 AB",
		City:        "Utrecht",
		Country:     "Nederland",
		Email:       "info@jansen.nl",
		VatNumber:   "NL001234567B01",
	}

	resolver := NewPartyResolver(api, "Demo BV", testLogger())
	customer, err := resolver.ResolveCustomer(context.Background(), store, intPtr(15), "factuur")
	if err != nil {
		t.Fatalf("ResolveCustomer error: %v", err)
	}
	if customer.Name != "Bakkerij Jansen" {
		t.Fatalf("customer name = %q", customer.Name)
	}
	if customer.EboekhoudenRelationId == nil || *customer.EboekhoudenRelationId != 15 {
		t.Fatal("customer does not carry the relation id")
	}
	if !strings.Contains(customer.Address, "1234 AB Utrecht") {
		t.Fatalf("address not assembled: %q", customer.Address)
	}
}

func TestResolveCustomer_PersonNameFallback(t *testing.T) {
	store := newFakeStore()
	api := newFakeAPI()
	api.relations[16] = &eboekhouden.Relation{ID: 16, FirstName: "Jan", LastName: "de Vries"}

	resolver := NewPartyResolver(api, "Demo BV", testLogger())
	customer, err := resolver.ResolveCustomer(context.Background(), store, intPtr(16), "")
	if err != nil {
		t.Fatalf("ResolveCustomer error: %v", err)
	}
	if customer.Name != "Jan de Vries" {
		t.Fatalf("customer name = %q", customer.Name)
	}
}

func TestResolveCustomer_UnknownRelationUsesPlaceholder(t *testing.T) {
	store := newFakeStore()
	api := newFakeAPI()

	resolver := NewPartyResolver(api, "Demo BV", testLogger())
	customer, err := resolver.ResolveCustomer(context.Background(), store, intPtr(99), "Contante verkoop markt")
	if err != nil {
		t.Fatalf("ResolveCustomer error: %v", err)
	}
	if customer.Name != "Contante verkoop markt (eBoekhouden Import)" {
		t.Fatalf("customer name = %q", customer.Name)
	}
	if customer.NeedsReview == nil || !*customer.NeedsReview {
		t.Fatal("placeholder customer must be flagged for review")
	}
}

func TestResolveCustomer_NoRelationUsesPlaceholder(t *testing.T) {
	store := newFakeStore()
	api := newFakeAPI()

	resolver := NewPartyResolver(api, "Demo BV", testLogger())
	customer, err := resolver.ResolveCustomer(context.Background(), store, nil, "Kasverkoop")
	if err != nil {
		t.Fatalf("ResolveCustomer error: %v", err)
	}
	if customer.Name != "Kasverkoop (eBoekhouden Import)" {
		t.Fatalf("customer name = %q", customer.Name)
	}

	// The same description resolves to the same placeholder, not a duplicate.
	again, err := resolver.ResolveCustomer(context.Background(), store, nil, "Kasverkoop")
	if err != nil {
		t.Fatalf("second ResolveCustomer error: %v", err)
	}
	if again.ID != customer.ID {
		t.Fatal("placeholder customer duplicated")
	}
}

func TestResolveSupplier_CreatesFromRelationPayload(t *testing.T) {
	store := newFakeStore()
	api := newFakeAPI()
	api.relations[20] = &eboekhouden.Relation{ID: 20, CompanyName: "Groothandel Pietersen"}

	resolver := NewPartyResolver(api, "Demo BV", testLogger())
	supplier, err := resolver.ResolveSupplier(context.Background(), store, intPtr(20), "inkoop")
	if err != nil {
		t.Fatalf("ResolveSupplier error: %v", err)
	}
	if supplier.Name != "Groothandel Pietersen" {
		t.Fatalf("supplier name = %q", supplier.Name)
	}
	if supplier.EboekhoudenRelationId == nil || *supplier.EboekhoudenRelationId != 20 {
		t.Fatal("supplier does not carry the relation id")
	}
}

func TestPreloadRelations_ServesLookupsWithoutDetailFetches(t *testing.T) {
	store := newFakeStore()
	api := newFakeAPI()
	api.relations[15] = &eboekhouden.Relation{ID: 15, CompanyName: "Bakkerij Jansen"}
	api.relations[20] = &eboekhouden.Relation{ID: 20, CompanyName: "Groothandel Pietersen"}

	resolver := NewPartyResolver(api, "Demo BV", testLogger())
	preloaded, err := resolver.PreloadRelations(context.Background())
	if err != nil {
		t.Fatalf("PreloadRelations error: %v", err)
	}
	if preloaded != 2 {
		t.Fatalf("preloaded = %d, expected 2", preloaded)
	}

	// Resolution works from the preloaded list even when the detail endpoint
	// no longer serves the relation.
	api.relations = map[int]*eboekhouden.Relation{}
	customer, err := resolver.ResolveCustomer(context.Background(), store, intPtr(15), "factuur")
	if err != nil {
		t.Fatalf("ResolveCustomer error: %v", err)
	}
	if customer.Name != "Bakkerij Jansen" {
		t.Fatalf("customer name = %q", customer.Name)
	}
	supplier, err := resolver.ResolveSupplier(context.Background(), store, intPtr(20), "inkoop")
	if err != nil {
		t.Fatalf("ResolveSupplier error: %v", err)
	}
	if supplier.Name != "Groothandel Pietersen" {
		t.Fatalf("supplier name = %q", supplier.Name)
	}
}

func TestInternalParties_CreatedOnceAndReused(t *testing.T) {
	store := newFakeStore()
	api := newFakeAPI()

	resolver := NewPartyResolver(api, "Demo BV", testLogger())
	customer, err := resolver.InternalCustomer(context.Background(), store)
	if err != nil {
		t.Fatalf("InternalCustomer error: %v", err)
	}
	if customer.Name != "Demo BV (Internal)" {
		t.Fatalf("internal customer name = %q", customer.Name)
	}
	if customer.IsInternal == nil || !*customer.IsInternal {
		t.Fatal("internal customer not flagged internal")
	}

	again, err := resolver.InternalCustomer(context.Background(), store)
	if err != nil {
		t.Fatalf("second InternalCustomer error: %v", err)
	}
	if again.ID != customer.ID {
		t.Fatal("internal customer duplicated")
	}

	supplier, err := resolver.InternalSupplier(context.Background(), store)
	if err != nil {
		t.Fatalf("InternalSupplier error: %v", err)
	}
	if supplier.Name != "Demo BV (Internal)" {
		t.Fatalf("internal supplier name = %q", supplier.Name)
	}
}
