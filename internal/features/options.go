package features

// Field names shared with the trained encoder and scaler.
const (
	FieldAge            = "age"
	FieldGender         = "gender"
	FieldState          = "state"
	FieldDevice         = "mtn_device"
	FieldSatisfaction   = "satisfaction_rate"
	FieldPlan           = "subscription_plan"
	FieldUnitPrice      = "unit_price"
	FieldPurchaseCount  = "number_of_times_purchased"
	FieldTotalRevenue   = "total_revenue"
	FieldDataUsage      = "data_usage"
	FieldTenureMonths   = "customer_tenure_in_months"
	FieldDateOfPurchase = "date_of_purchase"
)

const (
	minAge           = 1
	maxAge           = 120
	minRating        = 1
	maxRating        = 10
	minUnitPrice     = 1
	maxUnitPrice     = 10000
	maxPurchaseCount = 100
	maxTotalRevenue  = 100000
	maxDataUsageGB   = 100.0
	maxTenureMonths  = 1200

	purchaseDateLayout = "2006-01-02"
	daysPerTenureMonth = 30
)

var genders = []string{"Male", "Female"}

var states = []string{
	"Abia", "Abuja", "Adamawa", "Akwa Ibom", "Anambra", "Bauchi", "Bayelsa", "Benue",
	"Borno", "Cross River", "Delta", "Ebonyi", "Edo", "Ekiti", "Enugu", "Gombe",
	"Imo", "Jigawa", "Kaduna", "Kano", "Katsina", "Kebbi", "Kogi", "Kwara",
	"Lagos", "Nasarawa", "Niger", "Ogun", "Ondo", "Osun", "Oyo", "Plateau",
	"Rivers", "Sokoto", "Taraba", "Yobe", "Zamfara",
}

var devices = []string{"Mobile SIM Card", "4G Router", "5G Broadband Router", "Broadband MiFi"}

var plans = []string{
	"165GB Monthly Plan",
	"12.5GB Monthly Plan",
	"150GB FUP Monthly Unlimited",
	"1GB+1.5mins Daily Plan",
	"1.5TB Yearly Broadband Plan",
	"10GB+10mins Monthly Plan",
	"120GB Monthly Broadband Plan",
	"20GB Monthly Plan",
	"25GB Monthly Plan",
	"30GB Monthly Broadband Plan",
	"60GB Monthly Broadband Plan",
	"65GB Monthly Plan",
	"7GB Monthly Plan",
	"other",
}

// Range is an inclusive numeric bound enforced on a form field.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// FormOptions describes the fixed choices and bounds the form offers.
type FormOptions struct {
	Gender           []string         `json:"gender"`
	State            []string         `json:"state"`
	Device           []string         `json:"mtn_device"`
	SubscriptionPlan []string         `json:"subscription_plan"`
	Ranges           map[string]Range `json:"ranges"`
}

// Options returns copies of the option lists and numeric bounds.
func Options() FormOptions {
	return FormOptions{
		Gender:           clone(genders),
		State:            clone(states),
		Device:           clone(devices),
		SubscriptionPlan: clone(plans),
		Ranges: map[string]Range{
			FieldAge:           {Min: minAge, Max: maxAge},
			FieldSatisfaction:  {Min: minRating, Max: maxRating},
			FieldUnitPrice:     {Min: minUnitPrice, Max: maxUnitPrice},
			FieldPurchaseCount: {Min: 0, Max: maxPurchaseCount},
			FieldTotalRevenue:  {Min: 0, Max: maxTotalRevenue},
			FieldDataUsage:     {Min: 0, Max: maxDataUsageGB},
			FieldTenureMonths:  {Min: 0, Max: maxTenureMonths},
		},
	}
}

func clone(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
