package eboekhouden_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/boekhouden_backend/eboekhouden"
	"github.com/shopspring/decimal"
)

func TestParseMutationSupplierPayment(t *testing.T) {
	payload := []byte(`{
		"id": 6029,
		"type": 4,
		"date": "2024-09-27",
		"description": "Declaraties 20240923",
		"termOfPayment": 0,
		"ledgerId": 13201869,
		"relationId": 57542052,
		"inExVat": "EX",
		"invoiceNumber": "20240923,20240923-2",
		"entryNumber": "",
		"rows": [
			{"ledgerId": 13201883, "vatCode": "GEEN", "amount": 339.0, "description": "Declaratie"},
			{"ledgerId": 13201883, "vatCode": "GEEN", "amount": 0.91, "description": "Bankkosten"}
		]
	}`)

	m, err := eboekhouden.ParseMutation(payload)
	if err != nil {
		t.Fatalf("ParseMutation returned error: %v", err)
	}
	if m.ID != 6029 {
		t.Fatalf("expected id 6029, got %d", m.ID)
	}
	if m.Type != eboekhouden.MutationTypeSupplierPayment {
		t.Fatalf("expected supplier payment type, got %v", m.Type)
	}
	if m.Date.Format("2006-01-02") != "2024-09-27" {
		t.Fatalf("unexpected date %v", m.Date)
	}
	if m.RelationId == nil || *m.RelationId != 57542052 {
		t.Fatalf("unexpected relation id %v", m.RelationId)
	}
	if m.LedgerId == nil || *m.LedgerId != 13201869 {
		t.Fatalf("unexpected ledger id %v", m.LedgerId)
	}
	if len(m.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(m.Rows))
	}
	if !m.Rows[0].Amount.Equal(decimal.NewFromFloat(339.0)) {
		t.Fatalf("unexpected first row amount %s", m.Rows[0].Amount)
	}

	// Header has no amount, so the effective amount comes from the rows.
	want := decimal.NewFromFloat(339.91)
	if !m.EffectiveAmount().Equal(want) {
		t.Fatalf("expected effective amount %s, got %s", want, m.EffectiveAmount())
	}
}

func TestParseMutationHeaderAmountWins(t *testing.T) {
	payload := []byte(`{
		"id": 10,
		"type": 2,
		"date": "2023-01-15",
		"amount": 121.00,
		"rows": [{"ledgerId": 1, "amount": 100.00}]
	}`)
	m, err := eboekhouden.ParseMutation(payload)
	if err != nil {
		t.Fatalf("ParseMutation returned error: %v", err)
	}
	if !m.EffectiveAmount().Equal(decimal.NewFromFloat(121.00)) {
		t.Fatalf("expected header amount to win, got %s", m.EffectiveAmount())
	}
}

func TestParseMutationRejectsUnknownType(t *testing.T) {
	payload := []byte(`{"id": 5, "type": 11, "date": "2023-01-01"}`)
	if _, err := eboekhouden.ParseMutation(payload); err == nil {
		t.Fatal("expected error for unknown type code")
	}
}

func TestParseMutationRejectsMissingId(t *testing.T) {
	payload := []byte(`{"type": 2, "date": "2023-01-01"}`)
	if _, err := eboekhouden.ParseMutation(payload); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestParseMutationRejectsBadDate(t *testing.T) {
	payload := []byte(`{"id": 5, "type": 2, "date": "15-01-2023"}`)
	if _, err := eboekhouden.ParseMutation(payload); err == nil {
		t.Fatal("expected error for unparseable date")
	}
}

func TestParseMutationAcceptsDateTime(t *testing.T) {
	payload := []byte(`{"id": 7, "type": 0, "date": "2019-01-01T00:00:00"}`)
	m, err := eboekhouden.ParseMutation(payload)
	if err != nil {
		t.Fatalf("ParseMutation returned error: %v", err)
	}
	if m.Type != eboekhouden.MutationTypeOpeningBalance {
		t.Fatalf("expected opening balance type, got %v", m.Type)
	}
}

func TestParseMutationRejectsRowWithoutLedger(t *testing.T) {
	payload := []byte(`{"id": 8, "type": 7, "date": "2023-01-01", "rows": [{"amount": 50.00}]}`)
	if _, err := eboekhouden.ParseMutation(payload); err == nil {
		t.Fatal("expected error for row without ledger id")
	}
}

func TestRelationDisplayName(t *testing.T) {
	company := eboekhouden.Relation{CompanyName: "Acme BV", FirstName: "Jan", LastName: "Jansen"}
	if company.DisplayName() != "Acme BV" {
		t.Fatalf("expected company name, got %q", company.DisplayName())
	}
	if !company.IsCompany() {
		t.Fatal("expected relation with company name to be a company")
	}

	person := eboekhouden.Relation{FirstName: "Jan", LastName: "Jansen"}
	if person.DisplayName() != "Jan Jansen" {
		t.Fatalf("expected contact name, got %q", person.DisplayName())
	}
	if person.IsCompany() {
		t.Fatal("expected relation without company name to be a person")
	}
}
