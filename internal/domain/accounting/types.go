// Package accounting holds the chart-of-accounts and admin-mail records the
// remote API returns, plus the pure list operations the screens apply to them.
package accounting

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	domainauth "github.com/synergyaccounting/synergy-web/internal/domain/auth"
)

// NormalSide is the side on which an account's balance normally increases.
type NormalSide string

const (
	NormalSideDebit  NormalSide = "DEBIT"
	NormalSideCredit NormalSide = "CREDIT"
)

// Category is the top-level account classification.
type Category string

const (
	CategoryAsset     Category = "ASSET"
	CategoryLiability Category = "LIABILITY"
	CategoryEquity    Category = "EQUITY"
	CategoryRevenue   Category = "REVENUE"
	CategoryExpense   Category = "EXPENSE"
)

// SubCategory refines Category.
type SubCategory string

const (
	SubCategoryCurrent      SubCategory = "CURRENT"
	SubCategoryLongTerm     SubCategory = "LONGTERM"
	SubCategoryOwners       SubCategory = "OWNERS"
	SubCategoryShareholders SubCategory = "SHAREHOLDERS"
	SubCategoryOperating    SubCategory = "OPERATING"
	SubCategoryNonOperating SubCategory = "NONOPERATING"
)

// Account is one row of the chart of accounts.
type Account struct {
	Name           string               `json:"accountName"`
	Number         int64                `json:"accountNumber"`
	Description    string               `json:"accountDescription"`
	NormalSide     NormalSide           `json:"normalSide"`
	Category       Category             `json:"accountCategory"`
	SubCategory    SubCategory          `json:"accountSubCategory"`
	InitialBalance float64              `json:"initialBalance"`
	DebitBalance   float64              `json:"debitBalance"`
	CreditBalance  float64              `json:"creditBalance"`
	CurrentBalance float64              `json:"currentBalance"`
	DateAdded      domainauth.Timestamp `json:"dateAdded"`
	Creator        domainauth.Principal `json:"creator"`
}

// Email is a message in an administrator's internal inbox.
type Email struct {
	ID      string `json:"id"`
	To      string `json:"to"`
	From    string `json:"from"`
	Date    string `json:"date"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SortKey names a chart-of-accounts column.
type SortKey string

const (
	SortByNumber         SortKey = "accountNumber"
	SortByName           SortKey = "accountName"
	SortByDescription    SortKey = "accountDescription"
	SortByCategory       SortKey = "accountCategory"
	SortBySubCategory    SortKey = "accountSubCategory"
	SortByInitialBalance SortKey = "initialBalance"
	SortByCurrentBalance SortKey = "currentBalance"
	SortByDateAdded      SortKey = "dateAdded"
	SortByCreator        SortKey = "creator"
)

// ParseSortKey returns the key and whether it names a known column.
func ParseSortKey(s string) (SortKey, bool) {
	switch k := SortKey(s); k {
	case SortByNumber, SortByName, SortByDescription, SortByCategory, SortBySubCategory,
		SortByInitialBalance, SortByCurrentBalance, SortByDateAdded, SortByCreator:
		return k, true
	default:
		return "", false
	}
}

// SortAccounts returns a sorted copy. Every column sorts ascending except creator,
// which sorts by username descending. The sort is stable.
func SortAccounts(accounts []Account, key SortKey) []Account {
	out := slices.Clone(accounts)
	slices.SortStableFunc(out, func(a, b Account) int {
		switch key {
		case SortByName:
			return cmp.Compare(a.Name, b.Name)
		case SortByDescription:
			return cmp.Compare(a.Description, b.Description)
		case SortByCategory:
			return cmp.Compare(a.Category, b.Category)
		case SortBySubCategory:
			return cmp.Compare(a.SubCategory, b.SubCategory)
		case SortByInitialBalance:
			return cmp.Compare(a.InitialBalance, b.InitialBalance)
		case SortByCurrentBalance:
			return cmp.Compare(a.CurrentBalance, b.CurrentBalance)
		case SortByDateAdded:
			return a.DateAdded.Compare(b.DateAdded.Time)
		case SortByCreator:
			return cmp.Compare(b.Creator.Username, a.Creator.Username)
		default:
			return cmp.Compare(a.Number, b.Number)
		}
	})
	return out
}

// FilterAccounts keeps accounts whose name or number contains term.
// An empty term keeps everything.
func FilterAccounts(accounts []Account, term string) []Account {
	term = strings.TrimSpace(term)
	if term == "" {
		return accounts
	}
	needle := strings.ToLower(term)
	out := make([]Account, 0, len(accounts))
	for _, a := range accounts {
		if strings.Contains(strings.ToLower(a.Name), needle) ||
			strings.Contains(strconv.FormatInt(a.Number, 10), term) {
			out = append(out, a)
		}
	}
	return out
}

// SortEmailsNewestFirst returns a copy ordered by date, newest first.
// Undated messages sink to the bottom.
func SortEmailsNewestFirst(emails []Email) []Email {
	out := slices.Clone(emails)
	slices.SortStableFunc(out, func(a, b Email) int {
		ta, _ := domainauth.ParseTimestamp(a.Date)
		tb, _ := domainauth.ParseTimestamp(b.Date)
		return tb.Compare(ta.Time)
	})
	return out
}
