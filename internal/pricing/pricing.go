// Package pricing turns quote line items and pricing parameters into totals.
//
// All arithmetic is exact decimal. Nothing is rounded here; callers round with
// Display when a value is shown to a person.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DiscountType tells how a quote's discount value is interpreted.
type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

var hundred = decimal.NewFromInt(100)

// InputError describes a rejected pricing input.
type InputError struct {
	Field string
	Code  string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("pricing: %s %s", e.Field, e.Code)
}

// Item is one priced line.
type Item struct {
	Quantity  int
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
}

// Params are the quote-level adjustments.
type Params struct {
	DiscountValue decimal.Decimal
	DiscountType  DiscountType
	TaxRate       decimal.Decimal
	Shipping      decimal.Decimal
}

// Totals is the result of pricing a quote.
type Totals struct {
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Tax        decimal.Decimal
	Shipping   decimal.Decimal
	Total      decimal.Decimal
	ItemTotals []decimal.Decimal
}

// ItemTotal returns unitPrice*quantity - discount for a single line.
func ItemTotal(it Item) (decimal.Decimal, error) {
	if it.Quantity < 1 {
		return decimal.Zero, &InputError{Field: "quantity", Code: "must_be_positive"}
	}
	if it.UnitPrice.IsNegative() {
		return decimal.Zero, &InputError{Field: "unit_price", Code: "must_not_be_negative"}
	}
	if it.Discount.IsNegative() {
		return decimal.Zero, &InputError{Field: "discount", Code: "must_not_be_negative"}
	}
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Sub(it.Discount), nil
}

// Subtotal sums the line totals.
func Subtotal(items []Item) (decimal.Decimal, []decimal.Decimal, error) {
	sum := decimal.Zero
	totals := make([]decimal.Decimal, len(items))
	for i, it := range items {
		t, err := ItemTotal(it)
		if err != nil {
			if ie, ok := err.(*InputError); ok {
				err = &InputError{Field: fmt.Sprintf("items[%d].%s", i, ie.Field), Code: ie.Code}
			}
			return decimal.Zero, nil, err
		}
		totals[i] = t
		sum = sum.Add(t)
	}
	return sum, totals, nil
}

// Apply computes discount, tax and total from a subtotal.
//
//	discount = PERCENTAGE ? subtotal*value/100 : value
//	tax      = (subtotal-discount)*taxRate/100
//	total    = subtotal-discount+tax+shipping
func Apply(subtotal decimal.Decimal, p Params) (Totals, error) {
	if err := p.Validate(); err != nil {
		return Totals{}, err
	}
	discount := p.DiscountValue
	if p.DiscountType == DiscountPercentage {
		discount = subtotal.Mul(p.DiscountValue).Div(hundred)
	}
	base := subtotal.Sub(discount)
	tax := base.Mul(p.TaxRate).Div(hundred)
	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Shipping: p.Shipping,
		Total:    base.Add(tax).Add(p.Shipping),
	}, nil
}

// Calculate prices a full quote.
func Calculate(items []Item, p Params) (Totals, error) {
	subtotal, itemTotals, err := Subtotal(items)
	if err != nil {
		return Totals{}, err
	}
	t, err := Apply(subtotal, p)
	if err != nil {
		return Totals{}, err
	}
	t.ItemTotals = itemTotals
	return t, nil
}

// Validate checks the quote-level parameters.
func (p Params) Validate() error {
	if !p.DiscountType.Valid() {
		return &InputError{Field: "discount_type", Code: "invalid"}
	}
	if p.DiscountValue.IsNegative() {
		return &InputError{Field: "discount_value", Code: "must_not_be_negative"}
	}
	if p.DiscountType == DiscountPercentage && p.DiscountValue.GreaterThan(hundred) {
		return &InputError{Field: "discount_value", Code: "out_of_range"}
	}
	if p.TaxRate.IsNegative() {
		return &InputError{Field: "tax_rate", Code: "must_not_be_negative"}
	}
	if p.Shipping.IsNegative() {
		return &InputError{Field: "shipping", Code: "must_not_be_negative"}
	}
	return nil
}

// Display rounds an amount to cents for presentation.
func Display(d decimal.Decimal) string {
	return d.StringFixed(2)
}
