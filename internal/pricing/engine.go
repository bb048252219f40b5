// Package pricing computes a sale line's net payable amount under the
// customer's commercial schema. All arithmetic uses decimal values so that an
// invoice total is the exact sum of its line nets.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidQuantity indicates a zero or negative quantity.
	ErrInvalidQuantity = errors.New("pricing: quantity must be a positive integer")
	// ErrInvalidListPrice indicates a negative list price.
	ErrInvalidListPrice = errors.New("pricing: list price must be >= 0")
	// ErrInvalidDiscount indicates a discount percent outside [0,100].
	ErrInvalidDiscount = errors.New("pricing: discount percent must be within [0,100]")
	// ErrInvalidCommission indicates a commission outside its valid range.
	ErrInvalidCommission = errors.New("pricing: commission out of range")
	// ErrAdjustmentNotAllowed indicates discount/commission inputs supplied to
	// a schema that does not accept them. The caller should not have offered
	// those fields; silently dropping them would hide the mistake.
	ErrAdjustmentNotAllowed = errors.New("pricing: schema does not accept discount or commission input")
	// ErrNegativeNet indicates a flat commission larger than the discounted
	// subtotal. A net amount is never negative; the line is rejected instead.
	ErrNegativeNet = errors.New("pricing: commission exceeds discounted subtotal")
)

var oneHundred = decimal.NewFromInt(100)

// Line carries the raw inputs of one sale line.
type Line struct {
	ListPrice        decimal.Decimal
	Quantity         int64
	DiscountPercent  decimal.Decimal
	Commission       decimal.Decimal
	CommissionIsFlat bool
}

// ComputeLineNet returns the net payable amount of a line under schema.
// The switch over schemas is exhaustive; there is no default path that could
// silently price a line under the wrong schema.
func ComputeLineNet(schema Schema, line Line) (decimal.Decimal, error) {
	if line.Quantity <= 0 {
		return decimal.Zero, ErrInvalidQuantity
	}
	if line.ListPrice.IsNegative() {
		return decimal.Zero, ErrInvalidListPrice
	}
	subtotal := line.ListPrice.Mul(decimal.NewFromInt(line.Quantity))

	switch schema {
	case SchemaStraight:
		if !line.DiscountPercent.IsZero() || !line.Commission.IsZero() {
			return decimal.Zero, ErrAdjustmentNotAllowed
		}
		return subtotal, nil

	case SchemaListDisc:
		if !line.Commission.IsZero() {
			return decimal.Zero, ErrAdjustmentNotAllowed
		}
		return applyDiscount(subtotal, line.DiscountPercent)

	case SchemaListDiscComm:
		discounted, err := applyDiscount(subtotal, line.DiscountPercent)
		if err != nil {
			return decimal.Zero, err
		}
		return applyCommission(discounted, line.Commission, line.CommissionIsFlat)
	}
	return decimal.Zero, ErrUnknownSchema
}

// NetUnitPrice derives the stored per-unit net from a line net.
func NetUnitPrice(net decimal.Decimal, quantity int64) (decimal.Decimal, error) {
	if quantity <= 0 {
		return decimal.Zero, ErrInvalidQuantity
	}
	return net.Div(decimal.NewFromInt(quantity)), nil
}

func applyDiscount(subtotal, percent decimal.Decimal) (decimal.Decimal, error) {
	if percent.IsNegative() || percent.GreaterThan(oneHundred) {
		return decimal.Zero, ErrInvalidDiscount
	}
	return subtotal.Sub(subtotal.Mul(percent).Div(oneHundred)), nil
}

func applyCommission(discounted, commission decimal.Decimal, flat bool) (decimal.Decimal, error) {
	if flat {
		if commission.IsNegative() {
			return decimal.Zero, ErrInvalidCommission
		}
		net := discounted.Sub(commission)
		if net.IsNegative() {
			return decimal.Zero, ErrNegativeNet
		}
		return net, nil
	}
	if commission.IsNegative() || commission.GreaterThan(oneHundred) {
		return decimal.Zero, ErrInvalidCommission
	}
	return discounted.Sub(discounted.Mul(commission).Div(oneHundred)), nil
}
