package eboekhouden

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MutationType is the external type code of a bookkeeping mutation.
type MutationType int

const (
	MutationTypeOpeningBalance  MutationType = 0
	MutationTypePurchaseInvoice MutationType = 1
	MutationTypeSalesInvoice    MutationType = 2
	MutationTypeCustomerPayment MutationType = 3
	MutationTypeSupplierPayment MutationType = 4
	MutationTypeMoneyReceived   MutationType = 5
	MutationTypeMoneyPaid       MutationType = 6
	MutationTypeMemorial        MutationType = 7
	MutationTypeBankImport      MutationType = 8
	MutationTypeManualEntry     MutationType = 9
	MutationTypeStockMutation   MutationType = 10
)

func (t MutationType) Valid() bool {
	return t >= MutationTypeOpeningBalance && t <= MutationTypeStockMutation
}

func (t MutationType) String() string {
	switch t {
	case MutationTypeOpeningBalance:
		return "opening balance"
	case MutationTypePurchaseInvoice:
		return "purchase invoice"
	case MutationTypeSalesInvoice:
		return "sales invoice"
	case MutationTypeCustomerPayment:
		return "customer payment"
	case MutationTypeSupplierPayment:
		return "supplier payment"
	case MutationTypeMoneyReceived:
		return "money received"
	case MutationTypeMoneyPaid:
		return "money paid"
	case MutationTypeMemorial:
		return "memorial booking"
	case MutationTypeBankImport:
		return "bank import"
	case MutationTypeManualEntry:
		return "manual entry"
	case MutationTypeStockMutation:
		return "stock mutation"
	default:
		return fmt.Sprintf("unknown type %d", int(t))
	}
}

// Ledger categories as reported by the external API.
const (
	LedgerCategoryProfitLoss  = "VW"   // Verlies & Winst
	LedgerCategoryBalance     = "BAL"  // Balans
	LedgerCategoryFinancial   = "FIN"  // bank and cash
	LedgerCategoryReceivables = "DEB"  // Debiteuren
	LedgerCategoryPayables    = "CRED" // Crediteuren
)

// Mutation is one bookkeeping transaction after boundary validation.
// All fields downstream code reads are guaranteed to be present and in range;
// optional fields are pointers.
type Mutation struct {
	ID            int
	Type          MutationType
	Date          time.Time
	Description   string
	Amount        decimal.Decimal
	RelationId    *int
	InvoiceNumber string
	LedgerId      *int
	TermOfPayment int
	EntryNumber   string
	InExVat       string
	Rows          []MutationRow
}

// MutationRow is one transaction line. Amount is signed; the sign encodes
// direction relative to the row's role, which differs per mutation type.
type MutationRow struct {
	LedgerId      int
	Amount        decimal.Decimal
	Description   string
	InvoiceNumber string
	VatCode       string
}

// RowTotal returns the signed sum of all row amounts.
func (m *Mutation) RowTotal() decimal.Decimal {
	total := decimal.Zero
	for _, row := range m.Rows {
		total = total.Add(row.Amount)
	}
	return total
}

// EffectiveAmount returns the header amount, falling back to the row total
// when the header carries no amount (seen on payment mutations).
func (m *Mutation) EffectiveAmount() decimal.Decimal {
	if !m.Amount.IsZero() {
		return m.Amount
	}
	return m.RowTotal()
}

type rawMutation struct {
	ID            *int             `json:"id"`
	Type          *int             `json:"type"`
	Date          string           `json:"date"`
	Description   string           `json:"description"`
	Amount        *decimal.Decimal `json:"amount"`
	RelationId    *int             `json:"relationId"`
	InvoiceNumber string           `json:"invoiceNumber"`
	LedgerId      *int             `json:"ledgerId"`
	TermOfPayment *int             `json:"termOfPayment"`
	EntryNumber   string           `json:"entryNumber"`
	InExVat       string           `json:"inExVat"`
	Rows          []rawMutationRow `json:"rows"`
}

type rawMutationRow struct {
	LedgerId      *int             `json:"ledgerId"`
	Amount        *decimal.Decimal `json:"amount"`
	Description   string           `json:"description"`
	InvoiceNumber string           `json:"invoiceNumber"`
	VatCode       string           `json:"vatCode"`
}

func parseMutationDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, fmt.Errorf("mutation date is empty")
	}
	for _, layout := range []string{"2006-01-02", "2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable mutation date %q", v)
}

// ParseMutation validates one raw API payload into a Mutation. Payloads with
// a missing id, an unknown type code, or an unparseable date are rejected
// here so processors never see malformed data.
func ParseMutation(data []byte) (*Mutation, error) {
	var raw rawMutation
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid mutation payload: %w", err)
	}
	if raw.ID == nil {
		return nil, fmt.Errorf("mutation payload has no id")
	}
	if raw.Type == nil {
		return nil, fmt.Errorf("mutation %d has no type", *raw.ID)
	}
	mutationType := MutationType(*raw.Type)
	if !mutationType.Valid() {
		return nil, fmt.Errorf("mutation %d has unknown type code %d", *raw.ID, *raw.Type)
	}
	date, err := parseMutationDate(raw.Date)
	if err != nil {
		return nil, fmt.Errorf("mutation %d: %w", *raw.ID, err)
	}

	m := &Mutation{
		ID:            *raw.ID,
		Type:          mutationType,
		Date:          date,
		Description:   strings.TrimSpace(raw.Description),
		RelationId:    raw.RelationId,
		InvoiceNumber: strings.TrimSpace(raw.InvoiceNumber),
		LedgerId:      raw.LedgerId,
		EntryNumber:   strings.TrimSpace(raw.EntryNumber),
		InExVat:       raw.InExVat,
	}
	if raw.Amount != nil {
		m.Amount = *raw.Amount
	}
	if raw.TermOfPayment != nil {
		m.TermOfPayment = *raw.TermOfPayment
	}
	for i, row := range raw.Rows {
		if row.LedgerId == nil {
			return nil, fmt.Errorf("mutation %d row %d has no ledger id", m.ID, i)
		}
		parsed := MutationRow{
			LedgerId:      *row.LedgerId,
			Description:   strings.TrimSpace(row.Description),
			InvoiceNumber: strings.TrimSpace(row.InvoiceNumber),
			VatCode:       row.VatCode,
		}
		if row.Amount != nil {
			parsed.Amount = *row.Amount
		}
		m.Rows = append(m.Rows, parsed)
	}
	return m, nil
}

// Ledger is one external chart-of-accounts entry.
type Ledger struct {
	ID          int    `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Group       string `json:"group"`
}

// Relation is one external customer/supplier contact record.
type Relation struct {
	ID          int    `json:"id"`
	Code        string `json:"code"`
	CompanyName string `json:"bedrijfsnaam"`
	FirstName   string `json:"voornaam"`
	LastName    string `json:"achternaam"`
	Address     string `json:"adres"`
	Postcode    string `json:"postcode"`
	City        string `json:"plaats"`
	Country     string `json:"land"`
	Phone       string `json:"telefoon"`
	Email       string `json:"email"`
	VatNumber   string `json:"btwNummer"`
}

// DisplayName returns the company name, falling back to the contact name.
func (r *Relation) DisplayName() string {
	if name := strings.TrimSpace(r.CompanyName); name != "" {
		return name
	}
	return strings.TrimSpace(strings.TrimSpace(r.FirstName) + " " + strings.TrimSpace(r.LastName))
}

// IsCompany reports whether the relation represents a company rather than a person.
func (r *Relation) IsCompany() bool {
	return strings.TrimSpace(r.CompanyName) != ""
}

// CostCenter is one external cost center record.
type CostCenter struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}
