package features

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidField marks caller input that falls outside the form contract.
var ErrInvalidField = errors.New("invalid field")

// FieldError names the offending form field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Is lets errors.Is match ErrInvalidField.
func (e *FieldError) Is(target error) bool {
	return target == ErrInvalidField
}

func invalid(field, format string, args ...any) error {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// FormInput is the raw payload submitted by the customer form. Numeric fields
// are pointers so an omitted value is reported rather than read as zero.
type FormInput struct {
	Age              *int             `json:"age"`
	Gender           string           `json:"gender"`
	State            string           `json:"state"`
	Device           string           `json:"mtn_device"`
	SatisfactionRate *int             `json:"satisfaction_rate"`
	SubscriptionPlan string           `json:"subscription_plan"`
	UnitPrice        *decimal.Decimal `json:"unit_price"`
	PurchaseCount    *int             `json:"number_of_times_purchased"`
	TotalRevenue     *decimal.Decimal `json:"total_revenue"`
	DataUsage        *float64         `json:"data_usage"`
	TenureMonths     *int             `json:"customer_tenure_in_months,omitempty"`
	DateOfPurchase   string           `json:"date_of_purchase,omitempty"`
}

// CustomerRecord is a validated single-row record keyed by training field names.
type CustomerRecord struct {
	Age              int
	Gender           string
	State            string
	Device           string
	SatisfactionRate int
	SubscriptionPlan string
	UnitPrice        float64
	PurchaseCount    int
	TotalRevenue     float64
	DataUsage        float64
	TenureMonths     int
}

// Assemble validates the form input and builds the record. today anchors the
// purchase-date tenure derivation.
func Assemble(in FormInput, today time.Time) (CustomerRecord, error) {
	age, err := requiredInt(FieldAge, in.Age, minAge, maxAge)
	if err != nil {
		return CustomerRecord{}, err
	}
	gender, err := oneOf(FieldGender, in.Gender, genders)
	if err != nil {
		return CustomerRecord{}, err
	}
	state, err := oneOf(FieldState, in.State, states)
	if err != nil {
		return CustomerRecord{}, err
	}
	device, err := oneOf(FieldDevice, in.Device, devices)
	if err != nil {
		return CustomerRecord{}, err
	}
	satisfaction, err := requiredInt(FieldSatisfaction, in.SatisfactionRate, minRating, maxRating)
	if err != nil {
		return CustomerRecord{}, err
	}
	plan, err := oneOf(FieldPlan, in.SubscriptionPlan, plans)
	if err != nil {
		return CustomerRecord{}, err
	}
	unitPrice, err := decimalInRange(FieldUnitPrice, in.UnitPrice, minUnitPrice, maxUnitPrice)
	if err != nil {
		return CustomerRecord{}, err
	}
	purchases, err := requiredInt(FieldPurchaseCount, in.PurchaseCount, 0, maxPurchaseCount)
	if err != nil {
		return CustomerRecord{}, err
	}
	revenue, err := decimalInRange(FieldTotalRevenue, in.TotalRevenue, 0, maxTotalRevenue)
	if err != nil {
		return CustomerRecord{}, err
	}
	if in.DataUsage == nil {
		return CustomerRecord{}, invalid(FieldDataUsage, "is required")
	}
	dataUsage := *in.DataUsage
	if math.IsNaN(dataUsage) || dataUsage < 0 || dataUsage > maxDataUsageGB {
		return CustomerRecord{}, invalid(FieldDataUsage, "must be between 0 and %v", maxDataUsageGB)
	}
	tenure, err := resolveTenure(in, today)
	if err != nil {
		return CustomerRecord{}, err
	}

	return CustomerRecord{
		Age:              age,
		Gender:           gender,
		State:            state,
		Device:           device,
		SatisfactionRate: satisfaction,
		SubscriptionPlan: plan,
		UnitPrice:        unitPrice,
		PurchaseCount:    purchases,
		TotalRevenue:     revenue,
		DataUsage:        dataUsage,
		TenureMonths:     tenure,
	}, nil
}

// TenureFromPurchaseDate returns whole 30-day months elapsed since the purchase date.
func TenureFromPurchaseDate(purchase, today time.Time) (int, error) {
	start := dateOnly(purchase)
	end := dateOnly(today)
	if start.After(end) {
		return 0, invalid(FieldDateOfPurchase, "must not be in the future")
	}
	days := int(end.Sub(start).Hours() / 24)
	return days / daysPerTenureMonth, nil
}

func resolveTenure(in FormInput, today time.Time) (int, error) {
	if in.TenureMonths != nil {
		if err := intInRange(FieldTenureMonths, *in.TenureMonths, 0, maxTenureMonths); err != nil {
			return 0, err
		}
		return *in.TenureMonths, nil
	}
	raw := strings.TrimSpace(in.DateOfPurchase)
	if raw == "" {
		return 0, invalid(FieldTenureMonths, "tenure in months or date of purchase is required")
	}
	purchase, err := time.Parse(purchaseDateLayout, raw)
	if err != nil {
		return 0, invalid(FieldDateOfPurchase, "expected YYYY-MM-DD, got %q", raw)
	}
	months, err := TenureFromPurchaseDate(purchase, today)
	if err != nil {
		return 0, err
	}
	if months > maxTenureMonths {
		return 0, invalid(FieldDateOfPurchase, "implies tenure above %d months", maxTenureMonths)
	}
	return months, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intInRange(field string, value, min, max int) error {
	if value < min || value > max {
		return invalid(field, "must be between %d and %d, got %d", min, max, value)
	}
	return nil
}

func requiredInt(field string, value *int, min, max int) (int, error) {
	if value == nil {
		return 0, invalid(field, "is required")
	}
	if err := intInRange(field, *value, min, max); err != nil {
		return 0, err
	}
	return *value, nil
}

func decimalInRange(field string, ptr *decimal.Decimal, min, max int64) (float64, error) {
	if ptr == nil {
		return 0, invalid(field, "is required")
	}
	value := *ptr
	if value.LessThan(decimal.NewFromInt(min)) || value.GreaterThan(decimal.NewFromInt(max)) {
		return 0, invalid(field, "must be between %d and %d, got %s", min, max, value.String())
	}
	f, _ := value.Float64()
	return f, nil
}

func oneOf(field, value string, options []string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", invalid(field, "is required")
	}
	if !contains(options, trimmed) {
		return "", invalid(field, "%q is not one of the allowed options", trimmed)
	}
	return trimmed, nil
}

// Categorical returns a field rendered as an encoder input.
func (r CustomerRecord) Categorical(name string) (string, bool) {
	switch name {
	case FieldGender:
		return r.Gender, true
	case FieldState:
		return r.State, true
	case FieldDevice:
		return r.Device, true
	case FieldPlan:
		return r.SubscriptionPlan, true
	case FieldSatisfaction:
		return strconv.Itoa(r.SatisfactionRate), true
	}
	return "", false
}

// Numeric returns a field as a scaler input. Enum fields are not numeric.
func (r CustomerRecord) Numeric(name string) (float64, bool) {
	switch name {
	case FieldAge:
		return float64(r.Age), true
	case FieldSatisfaction:
		return float64(r.SatisfactionRate), true
	case FieldUnitPrice:
		return r.UnitPrice, true
	case FieldPurchaseCount:
		return float64(r.PurchaseCount), true
	case FieldTotalRevenue:
		return r.TotalRevenue, true
	case FieldDataUsage:
		return r.DataUsage, true
	case FieldTenureMonths:
		return float64(r.TenureMonths), true
	}
	return 0, false
}
