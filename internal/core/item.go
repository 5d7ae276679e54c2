package core

import (
	"errors"
	"math"
	"time"
)

const (
	Income  ItemType = "income"
	Expense ItemType = "expense"

	DefaultCurrency = "USD"

	// ItemTypePattern is the pattern reported back to clients when the type is rejected.
	ItemTypePattern = "^(income|expense)$"
)

type (
	ItemType string

	// ItemInput carries the client-supplied fields of a new budget item.
	// A nil CreatedAt is stamped with the current time on insert.
	ItemInput struct {
		Category  string
		Amount    float64
		Currency  string
		Type      ItemType
		CreatedAt *time.Time
	}

	BudgetItem struct {
		ID        int64
		Category  string
		Amount    float64
		Currency  string
		Type      ItemType
		CreatedAt time.Time
	}
)

var (
	ErrItemNotFound  = errors.New("item not found")
	ErrInvalidType   = errors.New("invalid item type")
	ErrInvalidAmount = errors.New("invalid amount")
)

// ParseItemType accepts exactly "income" or "expense".
func ParseItemType(s string) (ItemType, error) {
	switch ItemType(s) {
	case Income, Expense:
		return ItemType(s), nil
	default:
		return "", ErrInvalidType
	}
}

func (t ItemType) String() string {
	return string(t)
}

func (t ItemType) Valid() bool {
	_, err := ParseItemType(string(t))
	return err == nil
}

// Validate reports every field problem at once. Locations are relative to
// the item, callers prefix them with where the item came from.
func (in ItemInput) Validate() error {
	var errs ValidationErrors
	if !in.Type.Valid() {
		errs = append(errs, FieldError{
			Loc:  []string{"type"},
			Msg:  "String should match pattern '" + ItemTypePattern + "'",
			Type: "string_pattern_mismatch",
			Err:  ErrInvalidType,
		})
	}
	if math.IsNaN(in.Amount) || math.IsInf(in.Amount, 0) {
		errs = append(errs, FieldError{
			Loc:  []string{"amount"},
			Msg:  "Input should be a finite number",
			Type: "finite_number",
			Err:  ErrInvalidAmount,
		})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Timestamp returns the client supplied creation time, or now when absent,
// in UTC at the microsecond precision storage keeps. A stamped now is rounded
// up so it never precedes now.
func (in ItemInput) Timestamp(now time.Time) time.Time {
	if in.CreatedAt != nil {
		return in.CreatedAt.UTC().Truncate(time.Microsecond)
	}
	now = now.UTC()
	if t := now.Truncate(time.Microsecond); !t.Equal(now) {
		return t.Add(time.Microsecond)
	}
	return now
}

// NewBudgetItem builds the stored representation of in under the assigned id.
func NewBudgetItem(id int64, in ItemInput, createdAt time.Time) BudgetItem {
	return BudgetItem{
		ID:        id,
		Category:  in.Category,
		Amount:    in.Amount,
		Currency:  in.Currency,
		Type:      in.Type,
		CreatedAt: createdAt,
	}
}
