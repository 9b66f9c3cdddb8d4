package billing

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog is the immutable product-id lookup table: which SKU maps to which
// subscription cadence, which SKUs are one-time lifetime purchases, the
// ranking used when a user holds several simultaneously valid purchases, and
// the identifier of the introductory trial offer. Built once at process start
// and passed by reference.
type Catalog struct {
	plans        map[string]SubscriptionType
	lifetime     map[string]struct{}
	priority     map[string]int
	trialOfferID string
}

// catalogFile is the YAML shape of an external catalog definition.
type catalogFile struct {
	TrialOfferID string `yaml:"trial_offer_id"`
	Products     []struct {
		ID       string `yaml:"id"`
		Plan     string `yaml:"plan"`
		Lifetime bool   `yaml:"lifetime"`
	} `yaml:"products"`
	// Priority lists product ids best-first; listed ids outrank unlisted ones.
	Priority []string `yaml:"priority"`
}

// DefaultCatalog returns the compiled-in catalog for the known premium SKUs.
func DefaultCatalog() *Catalog {
	return &Catalog{
		plans: map[string]SubscriptionType{
			"showseek_premium_monthly": SubscriptionMonthly,
			"showseek_premium_yearly":  SubscriptionYearly,
		},
		lifetime: map[string]struct{}{
			"showseek_premium_lifetime": {},
		},
		priority: map[string]int{
			"showseek_premium_yearly":  0,
			"showseek_premium_monthly": 1,
		},
		trialOfferID: "showseek-free-trial",
	}
}

// LoadCatalogFile builds a Catalog from a YAML file. Used when the deployed
// SKU set differs from the compiled-in defaults.
func LoadCatalogFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadCatalog, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.Join(ErrFailedToLoadCatalog, err)
	}

	c := &Catalog{
		plans:        make(map[string]SubscriptionType),
		lifetime:     make(map[string]struct{}),
		priority:     make(map[string]int),
		trialOfferID: file.TrialOfferID,
	}

	for _, p := range file.Products {
		if p.ID == "" {
			return nil, errors.Join(ErrInvalidCatalog, errors.New("product with empty id"))
		}
		if p.Lifetime {
			c.lifetime[p.ID] = struct{}{}
			continue
		}
		switch SubscriptionType(p.Plan) {
		case SubscriptionMonthly, SubscriptionYearly:
			c.plans[p.ID] = SubscriptionType(p.Plan)
		default:
			return nil, errors.Join(ErrInvalidCatalog,
				fmt.Errorf("product %s has unknown plan %q", p.ID, p.Plan))
		}
	}

	for i, id := range file.Priority {
		c.priority[id] = i
	}

	return c, nil
}

// PlanFor returns the subscription cadence for a product id.
// Unknown ids report ok=false and leave the caller's value unchanged.
func (c *Catalog) PlanFor(productID string) (SubscriptionType, bool) {
	st, ok := c.plans[productID]
	return st, ok
}

// IsLifetime reports whether a product id denotes a one-time purchase.
func (c *Catalog) IsLifetime(productID string) bool {
	_, ok := c.lifetime[productID]
	return ok
}

// PriorityTable returns a copy of the product ranking, lower rank first.
// Product ids absent from the table sort after every ranked id.
func (c *Catalog) PriorityTable() map[string]int {
	out := make(map[string]int, len(c.priority))
	for id, rank := range c.priority {
		out[id] = rank
	}
	return out
}

// TrialOfferID returns the identifier of the introductory trial offer.
func (c *Catalog) TrialOfferID() string {
	return c.trialOfferID
}
