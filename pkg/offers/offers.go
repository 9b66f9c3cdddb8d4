package offers

// RecurrenceMode describes how a pricing phase repeats, following the play
// billing numbering: infinite until cancelled, a finite number of cycles, or
// a one-off charge.
type RecurrenceMode int

const (
	RecurrenceInfinite RecurrenceMode = 1
	RecurrenceFinite   RecurrenceMode = 2
	RecurrenceNone     RecurrenceMode = 3
)

// PricingPhase is one step of an offer's pricing schedule.
type PricingPhase struct {
	// BillingPeriod is an ISO-8601 duration string, e.g. P1M, P7D, P1W.
	BillingPeriod     string
	PriceAmountMicros int64
	RecurrenceMode    RecurrenceMode
	FormattedPrice    string
}

// OfferDetail is one purchasable offer from the platform's offer catalog.
type OfferDetail struct {
	OfferID       string
	OfferTags     []string
	OfferToken    string
	PricingPhases []PricingPhase
}

// TrialOffer is the result of trial-offer resolution.
type TrialOffer struct {
	IsEligible bool
	OfferToken string
}

// ResolveTrialOffer finds the introductory free-trial offer in catalog order.
// An offer qualifies when its id equals trialOfferID, when trialOfferID
// appears among its tags, or when its pricing phases show the trial shape: a
// zero-price seven-day phase together with a paid, infinitely recurring
// monthly phase. Offers without a usable token never qualify.
func ResolveTrialOffer(catalog []OfferDetail, trialOfferID string) TrialOffer {
	for _, offer := range catalog {
		if offer.OfferToken == "" {
			continue
		}
		if isTrialOffer(offer, trialOfferID) {
			return TrialOffer{IsEligible: true, OfferToken: offer.OfferToken}
		}
	}
	return TrialOffer{}
}

// ResolveStandardOffer picks the non-trial offer to purchase. Among offers
// with a token that are not classified as trials it prefers one with a
// recurring paid monthly phase, falling back to the first such offer. Returns
// an empty token when no non-trial offer exists.
func ResolveStandardOffer(catalog []OfferDetail, trialOfferID string) string {
	fallback := ""
	for _, offer := range catalog {
		if offer.OfferToken == "" || isTrialOffer(offer, trialOfferID) {
			continue
		}
		if hasPaidMonthlyRecurringPhase(offer) {
			return offer.OfferToken
		}
		if fallback == "" {
			fallback = offer.OfferToken
		}
	}
	return fallback
}

func isTrialOffer(offer OfferDetail, trialOfferID string) bool {
	if trialOfferID != "" {
		if offer.OfferID == trialOfferID {
			return true
		}
		for _, tag := range offer.OfferTags {
			if tag == trialOfferID {
				return true
			}
		}
	}
	return hasFreeWeekPhase(offer) && hasPaidMonthlyRecurringPhase(offer)
}

func hasFreeWeekPhase(offer OfferDetail) bool {
	for _, phase := range offer.PricingPhases {
		if phase.PriceAmountMicros == 0 && isWeeklyPeriod(phase.BillingPeriod) {
			return true
		}
	}
	return false
}

func hasPaidMonthlyRecurringPhase(offer OfferDetail) bool {
	for _, phase := range offer.PricingPhases {
		if phase.PriceAmountMicros > 0 &&
			phase.RecurrenceMode == RecurrenceInfinite &&
			phase.BillingPeriod == "P1M" {
			return true
		}
	}
	return false
}

// isWeeklyPeriod accepts the two ISO-8601 spellings of seven days.
func isWeeklyPeriod(period string) bool {
	return period == "P7D" || period == "P1W"
}
