package features

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FromValues builds a FormInput from string values keyed by field name, as
// found in CSV uploads. Blank numeric cells are rejected; tenure and purchase
// date may be blank because Assemble needs only one of them.
func FromValues(values map[string]string) (FormInput, error) {
	get := func(name string) string { return strings.TrimSpace(values[name]) }

	var in FormInput
	var err error
	if in.Age, err = parseInt(FieldAge, get(FieldAge)); err != nil {
		return FormInput{}, err
	}
	in.Gender = get(FieldGender)
	in.State = get(FieldState)
	in.Device = get(FieldDevice)
	if in.SatisfactionRate, err = parseInt(FieldSatisfaction, get(FieldSatisfaction)); err != nil {
		return FormInput{}, err
	}
	in.SubscriptionPlan = get(FieldPlan)
	if in.UnitPrice, err = parseDecimal(FieldUnitPrice, get(FieldUnitPrice)); err != nil {
		return FormInput{}, err
	}
	if in.PurchaseCount, err = parseInt(FieldPurchaseCount, get(FieldPurchaseCount)); err != nil {
		return FormInput{}, err
	}
	if in.TotalRevenue, err = parseDecimal(FieldTotalRevenue, get(FieldTotalRevenue)); err != nil {
		return FormInput{}, err
	}
	raw := get(FieldDataUsage)
	if raw == "" {
		return FormInput{}, invalid(FieldDataUsage, "is required")
	}
	usage, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return FormInput{}, invalid(FieldDataUsage, "not a number: %q", raw)
	}
	in.DataUsage = &usage
	if raw := get(FieldTenureMonths); raw != "" {
		if in.TenureMonths, err = parseInt(FieldTenureMonths, raw); err != nil {
			return FormInput{}, err
		}
	}
	in.DateOfPurchase = get(FieldDateOfPurchase)
	return in, nil
}

func parseInt(field, raw string) (*int, error) {
	if raw == "" {
		return nil, invalid(field, "is required")
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, invalid(field, "not an integer: %q", raw)
	}
	return &v, nil
}

func parseDecimal(field, raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, invalid(field, "is required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, invalid(field, "not a number: %q", raw)
	}
	return &d, nil
}
