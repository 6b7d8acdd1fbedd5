// Package rules maps tax categories to worksheet buckets deterministically.
package rules

import (
	"sort"

	"github.com/oakmere/shoebox/internal/model"
)

// CatchAllCategory aggregates client custom categories that have no standard
// tax line. Reported separately from standard 6A lines at export time.
const CatchAllCategory = "6A: Other Expenses"

// rule is one standard tax category's worksheet assignment. Fallback applies
// when the worksheet requires a profile flag the client does not have.
type rule struct {
	Worksheet model.Worksheet
	Fallback  model.Worksheet
}

// standardCategories is the standard tax category list. Categories absent
// from it are treated as custom and land in the 6A catch-all.
var standardCategories = map[string]rule{
	"Advertising": {Worksheet: model.Worksheet6A},
	"Car & Truck Expenses": {Worksheet: model.WorksheetAuto, Fallback: model.WorksheetPersonal},
	"Commissions & Fees": {Worksheet: model.Worksheet6A},
	"Contract Labor": {Worksheet: model.Worksheet6A},
	"Insurance": {Worksheet: model.Worksheet6A},
	"Interest": {Worksheet: model.Worksheet6A},
	"Legal & Professional": {Worksheet: model.Worksheet6A},
	"Office Expenses": {Worksheet: model.Worksheet6A},
	"Rent & Lease": {Worksheet: model.Worksheet6A},
	"Repairs & Maintenance": {Worksheet: model.Worksheet6A},
	"Supplies": {Worksheet: model.Worksheet6A},
	"Taxes & Licenses": {Worksheet: model.Worksheet6A},
	"Travel": {Worksheet: model.Worksheet6A},
	"Meals": {Worksheet: model.Worksheet6A},
	"Entertainment": {Worksheet: model.Worksheet6A},
	"Utilities": {Worksheet: model.Worksheet6A},
	"Home Office": {Worksheet: model.WorksheetHomeOffice, Fallback: model.WorksheetPersonal},
	"Education": {Worksheet: model.Worksheet6A},
	"Software & Subscriptions": {Worksheet: model.Worksheet6A},
	"Bank & Merchant Fees": {Worksheet: model.Worksheet6A},
	"Dues & Memberships": {Worksheet: model.Worksheet6A},
	"Postage & Shipping": {Worksheet: model.Worksheet6A},
	"Personal": {Worksheet: model.WorksheetPersonal},
}

// misuseProne lists categories historically prone to personal expenses being
// claimed as business. Sub-high-confidence inference results in these
// categories are downgraded one tier toward Personal.
var misuseProne = map[string]bool{
	"Meals":                true,
	"Travel":               true,
	"Entertainment":        true,
	"Car & Truck Expenses": true,
	"Home Office":          true,
}

// Assign maps a tax category to its worksheet given the client's profile.
// A worksheet whose profile requirement is unmet falls back per category
// default; an inapplicable worksheet is never assigned. Unknown categories
// are custom and map to the 6A catch-all.
func Assign(taxCategory string, profile *model.ClientProfile) model.Worksheet {
	r, ok := standardCategories[taxCategory]
	if !ok {
		return model.Worksheet6A
	}

	switch r.Worksheet {
	case model.WorksheetAuto:
		if !profile.HasVehicle {
			return fallback(r)
		}
	case model.WorksheetHomeOffice:
		if !profile.HasHomeOffice {
			return fallback(r)
		}
	}

	return r.Worksheet
}

func fallback(r rule) model.Worksheet {
	if r.Fallback != "" {
		return r.Fallback
	}
	return model.Worksheet6A
}

// StandardWorksheet returns the worksheet a standard category maps to before
// any profile applicability check, and whether the category is standard.
func StandardWorksheet(taxCategory string) (model.Worksheet, bool) {
	r, ok := standardCategories[taxCategory]
	if !ok {
		return "", false
	}
	return r.Worksheet, true
}

// IsStandard reports whether the tax category is on the standard list.
func IsStandard(taxCategory string) bool {
	_, ok := standardCategories[taxCategory]
	return ok
}

// IsMisuseProne reports whether the category triggers the confidence
// downgrade policy.
func IsMisuseProne(taxCategory string) bool {
	return misuseProne[taxCategory]
}

// Downgrade moves a worksheet one tier toward Personal. Auto and HomeOffice
// fall to the general 6A line; 6A falls to Personal; Personal and None are
// already at the floor.
func Downgrade(w model.Worksheet) model.Worksheet {
	switch w {
	case model.WorksheetAuto, model.WorksheetHomeOffice:
		return model.Worksheet6A
	case model.Worksheet6A:
		return model.WorksheetPersonal
	default:
		return w
	}
}

// StandardTaxCategories returns the standard category names sorted, so prompt
// text stays stable across runs.
func StandardTaxCategories() []string {
	names := make([]string, 0, len(standardCategories))
	for name := range standardCategories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
