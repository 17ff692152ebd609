package advice

import (
	"context"
	"fmt"
	"strings"
)

// SourceCanned labels advice produced from the static playbook.
const SourceCanned = "canned"

var playbook = map[string]string{
	BandLow:    "Customer looks stable. Keep regular engagement and offer loyalty rewards at renewal.",
	BandMedium: "Customer shows some churn signals. Reach out with a plan review and a targeted bundle offer.",
	BandHigh:   "Customer is likely to churn. Escalate to the retention team and offer a discounted plan or bonus data.",
}

// Canned produces fixed recommendation text per risk band.
type Canned struct{}

// Enabled always reports true.
func (Canned) Enabled() bool { return true }

// Advise picks the playbook entry for the band and appends a field-specific hint.
func (Canned) Advise(_ context.Context, input Input) (Advice, error) {
	band := Band(input.Result.ChurnProbability)
	text := playbook[band]
	if hint := hintFor(input); hint != "" && band != BandLow {
		text = text + " " + hint
	}
	return Advice{Band: band, Recommendation: text, Source: SourceCanned}, nil
}

func hintFor(input Input) string {
	r := input.Record
	var hints []string
	if r.SatisfactionRate > 0 && r.SatisfactionRate <= 4 {
		hints = append(hints, fmt.Sprintf("follow up on the low satisfaction rating (%d/10)", r.SatisfactionRate))
	}
	if r.TenureMonths < 6 {
		hints = append(hints, "the customer is still in the first months of tenure")
	}
	if len(hints) == 0 {
		return ""
	}
	h := strings.Join(hints, "; ")
	return strings.ToUpper(h[:1]) + h[1:] + "."
}
