// Package offers selects the correct purchasable offer from a heterogeneous
// platform offer catalog and ranks simultaneously held purchases.
//
// Everything here is pure and side-effect free: the purchase flow calls
// ResolveTrialOffer or ResolveStandardOffer to obtain an offer token before
// invoking the platform purchase API, and SortByPriority to pick the
// canonical purchase when a user holds several. Safe for concurrent use.
package offers
