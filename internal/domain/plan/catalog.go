// internal/domain/plan/catalog.go
package plan

import "sort"

type Category string

const (
	CategoryPersonalized Category = "personalized"
	CategoryOnline       Category = "online"
)

// Plan describes the billing attributes of one offer. AmountCents is the
// monthly price; CommitmentMonths is zero when the plan has no minimum term.
type Plan struct {
	ID               string   `json:"id"`
	ProductName      string   `json:"product_name"`
	Category         Category `json:"category"`
	CommitmentMonths int      `json:"commitment_months,omitempty"`
	AmountCents      int64    `json:"amount_cents"`
}

// HasCommitment reports whether the subscription auto-cancels after a fixed term.
func (p Plan) HasCommitment() bool {
	return p.CommitmentMonths > 0
}

// catalog is built once and never mutated. Product names must match the
// active products provisioned in both processor environments.
var catalog = map[string]Plan{
	"starter": {
		ID:               "starter",
		ProductName:      "Coaching Starter",
		Category:         CategoryPersonalized,
		CommitmentMonths: 2,
		AmountCents:      6900,
	},
	"pro": {
		ID:               "pro",
		ProductName:      "Coaching Pro",
		Category:         CategoryPersonalized,
		CommitmentMonths: 4,
		AmountCents:      12900,
	},
	"expert": {
		ID:               "expert",
		ProductName:      "Coaching Expert",
		Category:         CategoryPersonalized,
		CommitmentMonths: 6,
		AmountCents:      17900,
	},
	"essentiel": {
		ID:               "essentiel",
		ProductName:      "Online Essentiel",
		Category:         CategoryOnline,
		CommitmentMonths: 2,
		AmountCents:      1900,
	},
	"avance": {
		ID:               "avance",
		ProductName:      "Online Avance",
		Category:         CategoryOnline,
		CommitmentMonths: 3,
		AmountCents:      2900,
	},
	"premium": {
		ID:               "premium",
		ProductName:      "Online Premium",
		Category:         CategoryOnline,
		CommitmentMonths: 6,
		AmountCents:      3900,
	},
}

// Lookup returns the plan registered under id.
func Lookup(id string) (Plan, bool) {
	p, ok := catalog[id]
	return p, ok
}

// All returns every plan, personalized tiers first, then by price.
func All() []Plan {
	plans := make([]Plan, 0, len(catalog))
	for _, p := range catalog {
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].Category != plans[j].Category {
			return plans[i].Category == CategoryPersonalized
		}
		return plans[i].AmountCents < plans[j].AmountCents
	})
	return plans
}
