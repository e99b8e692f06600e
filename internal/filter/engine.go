// Package filter implements the listing matching engine.
package filter

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"props_bot/internal/model"
)

// Match checks whether a listing satisfies the criteria and the free-text
// query. Unset constraints always pass. Price bounds only match listings
// priced in the criteria currency.
func Match(p model.Property, c model.Criteria, query string) bool {
	if c.Operation != nil && p.Operation != *c.Operation {
		return false
	}
	if len(c.PropertyTypes) > 0 && !slices.Contains(c.PropertyTypes, p.Type) {
		return false
	}
	if c.PriceMin != nil || c.PriceMax != nil {
		if p.Currency != c.Currency || !inRange(p.Price, c.PriceMin, c.PriceMax) {
			return false
		}
	}
	if !inRange(p.AreaM2, c.AreaMin, c.AreaMax) {
		return false
	}
	if !atLeast(p.Bedrooms, c.Bedrooms) || !atLeast(p.Bathrooms, c.Bathrooms) || !atLeast(p.Parking, c.Parking) {
		return false
	}
	if c.Age != nil && !matchesAge(p.AgeYears, *c.Age) {
		return false
	}
	if len(c.Neighborhoods) > 0 && !containsFold(c.Neighborhoods, p.Neighborhood) {
		return false
	}
	for _, a := range c.Amenities {
		if !containsFold(p.Amenities, a) {
			return false
		}
	}
	if c.OnlyOpportunities && !p.IsOpportunity {
		return false
	}
	return matchesQuery(p, query)
}

func inRange(v float64, lo, hi *float64) bool {
	if lo != nil && v < *lo {
		return false
	}
	if hi != nil && v > *hi {
		return false
	}
	return true
}

func atLeast(v int, floor *int) bool {
	return floor == nil || v >= *floor
}

func matchesAge(years int, b model.AgeBracket) bool {
	switch b {
	case model.AgeNew:
		return years == 0
	case model.AgeUpTo5:
		return years <= 5
	case model.AgeUpTo10:
		return years <= 10
	case model.AgeUpTo20:
		return years <= 20
	case model.AgeOver20:
		return years > 20
	}
	return true
}

// matchesQuery requires every query term to appear in the title or the
// neighbourhood.
func matchesQuery(p model.Property, query string) bool {
	terms := strings.Fields(Normalize(query))
	if len(terms) == 0 {
		return true
	}
	text := Normalize(p.Title + " " + p.Neighborhood)
	for _, term := range terms {
		if !strings.Contains(text, term) {
			return false
		}
	}
	return true
}

func containsFold(list []string, v string) bool {
	nv := Normalize(v)
	for _, s := range list {
		if Normalize(s) == nv {
			return true
		}
	}
	return false
}

// Normalize lowercases s and strips diacritics, so "Núñez" and "nunez"
// compare equal.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// Sort orders listings in place by key. Relevance keeps the source order.
// Price keys only compare listings priced in currency; the rest follow in
// source order whatever the direction.
func Sort(items []model.Property, key model.SortKey, order model.SortOrder, currency model.Currency) {
	var field func(model.Property) float64
	byPrice := false
	switch key {
	case model.SortPrice:
		field = func(p model.Property) float64 { return p.Price }
		byPrice = true
	case model.SortPricePerM2:
		field = func(p model.Property) float64 { return p.PricePerM2() }
		byPrice = true
	case model.SortArea:
		field = func(p model.Property) float64 { return p.AreaM2 }
	case model.SortDate:
		field = func(p model.Property) float64 { return float64(p.PublishedAt.Unix()) }
	case model.SortOpportunity:
		field = func(p model.Property) float64 { return p.OpportunityScore }
	default:
		return
	}
	slices.SortStableFunc(items, func(a, b model.Property) int {
		if byPrice {
			aIn, bIn := a.Currency == currency, b.Currency == currency
			switch {
			case aIn && !bIn:
				return -1
			case !aIn && bIn:
				return 1
			case !aIn && !bIn:
				return 0
			}
		}
		if order == model.SortAsc {
			return cmp.Compare(field(a), field(b))
		}
		return cmp.Compare(field(b), field(a))
	})
}

// Search filters, sorts and paginates listings. Pages start at 1.
func Search(items []model.Property, c model.Criteria, query string, page, limit int) model.PropertiesResponse {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	var matched []model.Property
	for _, p := range items {
		if Match(p, c, query) {
			matched = append(matched, p)
		}
	}
	Sort(matched, c.SortBy, c.SortOrder, c.Currency)

	resp := model.PropertiesResponse{Total: len(matched), Page: page, Limit: limit}
	if len(matched) == 0 || page-1 > (len(matched)-1)/limit {
		return resp
	}
	start := (page - 1) * limit
	end := min(start+limit, len(matched))
	resp.Items = matched[start:end]
	resp.HasMore = end < len(matched)
	return resp
}
