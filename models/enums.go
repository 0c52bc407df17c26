package models

type AccountDetailType string

const (
	AccountDetailTypeOtherAsset            AccountDetailType = "OtherAsset"
	AccountDetailTypeOtherCurrentAsset     AccountDetailType = "OtherCurrentAsset"
	AccountDetailTypeCash                  AccountDetailType = "Cash"
	AccountDetailTypeBank                  AccountDetailType = "Bank"
	AccountDetailTypeFixedAsset            AccountDetailType = "FixedAsset"
	AccountDetailTypeStock                 AccountDetailType = "Stock"
	AccountDetailTypeInputTax              AccountDetailType = "InputTax"
	AccountDetailTypeOutputTax             AccountDetailType = "OutputTax"
	AccountDetailTypeOtherCurrentLiability AccountDetailType = "OtherCurrentLiability"
	AccountDetailTypeLongTermLiability     AccountDetailType = "LongTermLiability"
	AccountDetailTypeOtherLiability        AccountDetailType = "OtherLiability"
	AccountDetailTypeEquity                AccountDetailType = "Equity"
	AccountDetailTypeIncome                AccountDetailType = "Income"
	AccountDetailTypeOtherIncome           AccountDetailType = "OtherIncome"
	AccountDetailTypeExpense               AccountDetailType = "Expense"
	AccountDetailTypeCostOfGoodsSold       AccountDetailType = "CostOfGoodsSold"
	AccountDetailTypeOtherExpense          AccountDetailType = "OtherExpense"
	AccountDetailTypeAccountsReceivable    AccountDetailType = "AccountsReceivable"
	AccountDetailTypeAccountsPayable       AccountDetailType = "AccountsPayable"
)

type AccountMainType string

const (
	AccountMainTypeAsset     AccountMainType = "Asset"
	AccountMainTypeLiability AccountMainType = "Liability"
	AccountMainTypeEquity    AccountMainType = "Equity"
	AccountMainTypeIncome    AccountMainType = "Income"
	AccountMainTypeExpense   AccountMainType = "Expense"
)

// IsProfitAndLoss reports whether the main type belongs to the P&L statement.
func (t AccountMainType) IsProfitAndLoss() bool {
	return t == AccountMainTypeIncome || t == AccountMainTypeExpense
}

type PartyType string

const (
	PartyTypeCustomer PartyType = "Customer"
	PartyTypeSupplier PartyType = "Supplier"
)

type PaymentType string

const (
	PaymentTypeReceive PaymentType = "Receive"
	PaymentTypePay     PaymentType = "Pay"
)

type TransactionSide string

const (
	TransactionSideSales    TransactionSide = "Sales"
	TransactionSidePurchase TransactionSide = "Purchase"
	TransactionSideBoth     TransactionSide = "Both"
)

type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "Draft"
	DocumentStatusSubmitted DocumentStatus = "Submitted"
	DocumentStatusCancelled DocumentStatus = "Cancelled"
)

type UserRole string

const (
	UserRoleAdmin  UserRole = "Admin"
	UserRoleStaff  UserRole = "Staff"
	UserRoleViewer UserRole = "Viewer"
)
