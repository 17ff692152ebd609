package features

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var today = time.Date(2024, time.June, 30, 15, 4, 5, 0, time.UTC)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func decPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func validInput() FormInput {
	return FormInput{
		Age:              intPtr(45),
		Gender:           "Male",
		State:            "Lagos",
		Device:           "Mobile SIM Card",
		SatisfactionRate: intPtr(7),
		SubscriptionPlan: "165GB Monthly Plan",
		UnitPrice:        decPtr("1000"),
		PurchaseCount:    intPtr(5),
		TotalRevenue:     decPtr("5000"),
		DataUsage:        floatPtr(10.0),
		TenureMonths:     intPtr(12),
	}
}

func TestAssembleValid(t *testing.T) {
	record, err := Assemble(validInput(), today)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if record.UnitPrice != 1000 || record.TotalRevenue != 5000 || record.TenureMonths != 12 {
		t.Fatalf("unexpected record %+v", record)
	}
	if v, ok := record.Numeric(FieldAge); !ok || v != 45 {
		t.Fatalf("numeric age lookup: %v %v", v, ok)
	}
	if v, ok := record.Categorical(FieldState); !ok || v != "Lagos" {
		t.Fatalf("categorical state lookup: %v %v", v, ok)
	}
	if _, ok := record.Numeric(FieldGender); ok {
		t.Fatalf("gender must not be numeric")
	}
	if _, ok := record.Categorical("customer_review"); ok {
		t.Fatalf("customer_review is not part of the record")
	}
}

func TestAssembleRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*FormInput)
		field  string
	}{
		{"age zero", func(in *FormInput) { in.Age = intPtr(0) }, FieldAge},
		{"age missing", func(in *FormInput) { in.Age = nil }, FieldAge},
		{"age too high", func(in *FormInput) { in.Age = intPtr(121) }, FieldAge},
		{"unknown gender", func(in *FormInput) { in.Gender = "Other" }, FieldGender},
		{"lowercase state", func(in *FormInput) { in.State = "lagos" }, FieldState},
		{"unknown device", func(in *FormInput) { in.Device = "Landline" }, FieldDevice},
		{"satisfaction", func(in *FormInput) { in.SatisfactionRate = intPtr(11) }, FieldSatisfaction},
		{"satisfaction missing", func(in *FormInput) { in.SatisfactionRate = nil }, FieldSatisfaction},
		{"plan missing", func(in *FormInput) { in.SubscriptionPlan = " " }, FieldPlan},
		{"unit price low", func(in *FormInput) { in.UnitPrice = decPtr("0.5") }, FieldUnitPrice},
		{"unit price high", func(in *FormInput) { in.UnitPrice = decPtr("10001") }, FieldUnitPrice},
		{"unit price missing", func(in *FormInput) { in.UnitPrice = nil }, FieldUnitPrice},
		{"purchases", func(in *FormInput) { in.PurchaseCount = intPtr(101) }, FieldPurchaseCount},
		{"purchases missing", func(in *FormInput) { in.PurchaseCount = nil }, FieldPurchaseCount},
		{"revenue", func(in *FormInput) { in.TotalRevenue = decPtr("-1") }, FieldTotalRevenue},
		{"revenue missing", func(in *FormInput) { in.TotalRevenue = nil }, FieldTotalRevenue},
		{"data usage", func(in *FormInput) { in.DataUsage = floatPtr(100.1) }, FieldDataUsage},
		{"data usage missing", func(in *FormInput) { in.DataUsage = nil }, FieldDataUsage},
		{"tenure", func(in *FormInput) { in.TenureMonths = intPtr(1201) }, FieldTenureMonths},
		{"no tenure source", func(in *FormInput) { in.TenureMonths = nil }, FieldTenureMonths},
		{"bad date", func(in *FormInput) { in.TenureMonths = nil; in.DateOfPurchase = "30/06/2024" }, FieldDateOfPurchase},
		{"future date", func(in *FormInput) { in.TenureMonths = nil; in.DateOfPurchase = "2024-07-01" }, FieldDateOfPurchase},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := Assemble(in, today)
			if !errors.Is(err, ErrInvalidField) {
				t.Fatalf("expected ErrInvalidField, got %v", err)
			}
			var fieldErr *FieldError
			if !errors.As(err, &fieldErr) {
				t.Fatalf("expected *FieldError, got %T", err)
			}
			if fieldErr.Field != tc.field {
				t.Fatalf("expected field %s got %s", tc.field, fieldErr.Field)
			}
		})
	}
}

func TestTenureFromPurchaseDate(t *testing.T) {
	tests := []struct {
		date     string
		expected int
	}{
		{"2024-06-30", 0},
		{"2024-06-01", 0},
		{"2024-05-31", 1},
		{"2023-06-30", 12},
		{"2014-06-30", 121},
	}
	for _, tc := range tests {
		t.Run(tc.date, func(t *testing.T) {
			in := validInput()
			in.TenureMonths = nil
			in.DateOfPurchase = tc.date
			record, err := Assemble(in, today)
			if err != nil {
				t.Fatalf("assemble: %v", err)
			}
			if record.TenureMonths != tc.expected {
				t.Fatalf("expected %d months got %d", tc.expected, record.TenureMonths)
			}
		})
	}
}

func TestDirectTenureWinsOverDate(t *testing.T) {
	in := validInput()
	in.DateOfPurchase = "2000-01-01"
	record, err := Assemble(in, today)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if record.TenureMonths != 12 {
		t.Fatalf("expected direct tenure 12, got %d", record.TenureMonths)
	}
}

func TestFromValues(t *testing.T) {
	in, err := FromValues(map[string]string{
		FieldAge:           "45",
		FieldGender:        "Female",
		FieldState:         "Kano",
		FieldDevice:        "Broadband MiFi",
		FieldSatisfaction:  "3",
		FieldPlan:          "7GB Monthly Plan",
		FieldUnitPrice:     "2500.50",
		FieldPurchaseCount: "8",
		FieldTotalRevenue:  "20004",
		FieldDataUsage:     "33.3",
		FieldTenureMonths:  "40",
	})
	if err != nil {
		t.Fatalf("from values: %v", err)
	}
	record, err := Assemble(in, today)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if record.UnitPrice != 2500.5 || record.TenureMonths != 40 || record.DataUsage != 33.3 {
		t.Fatalf("unexpected record %+v", record)
	}

	if _, err := FromValues(map[string]string{FieldAge: "forty"}); !errors.Is(err, ErrInvalidField) {
		t.Fatalf("expected ErrInvalidField for non-numeric age, got %v", err)
	}
}

func TestFromValuesRejectsBlankNumericCells(t *testing.T) {
	complete := map[string]string{
		FieldAge:           "45",
		FieldGender:        "Male",
		FieldState:         "Lagos",
		FieldDevice:        "Mobile SIM Card",
		FieldSatisfaction:  "7",
		FieldPlan:          "165GB Monthly Plan",
		FieldUnitPrice:     "1000",
		FieldPurchaseCount: "5",
		FieldTotalRevenue:  "5000",
		FieldDataUsage:     "10",
		FieldTenureMonths:  "12",
	}
	for _, field := range []string{FieldAge, FieldSatisfaction, FieldUnitPrice, FieldPurchaseCount, FieldTotalRevenue, FieldDataUsage} {
		t.Run(field, func(t *testing.T) {
			values := make(map[string]string, len(complete))
			for k, v := range complete {
				values[k] = v
			}
			values[field] = " "
			_, err := FromValues(values)
			var fieldErr *FieldError
			if !errors.As(err, &fieldErr) || fieldErr.Field != field {
				t.Fatalf("expected field error for blank %s, got %v", field, err)
			}
		})
	}

	delete(complete, FieldTenureMonths)
	complete[FieldDateOfPurchase] = "2023-06-30"
	in, err := FromValues(complete)
	if err != nil {
		t.Fatalf("blank tenure with a purchase date must be accepted: %v", err)
	}
	if in.TenureMonths != nil {
		t.Fatalf("expected tenure left unset, got %d", *in.TenureMonths)
	}
}

func TestOptionsAreCopies(t *testing.T) {
	opts := Options()
	if len(opts.State) < 35 {
		t.Fatalf("expected full state list, got %d", len(opts.State))
	}
	opts.Gender[0] = "changed"
	if Options().Gender[0] != "Male" {
		t.Fatalf("Options must return copies")
	}
}
