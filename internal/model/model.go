// Package model defines the domain types used across the application.
package model

import (
	"encoding/json"
	"time"
)

// Operation is the listing operation type.
type Operation string

// Supported operations.
const (
	OperationSale Operation = "sale"
	OperationRent Operation = "rent"
)

// PropertyType classifies a listing.
type PropertyType string

// Supported property types.
const (
	TypeApartment  PropertyType = "apartment"
	TypeHouse      PropertyType = "house"
	TypePH         PropertyType = "ph"
	TypeLand       PropertyType = "land"
	TypeOffice     PropertyType = "office"
	TypeCommercial PropertyType = "commercial"
)

// Currency is the currency a price bound is expressed in.
type Currency string

// Supported currencies.
const (
	CurrencyUSD Currency = "USD"
	CurrencyARS Currency = "ARS"
)

// AgeBracket groups listings by building age.
type AgeBracket string

// Supported age brackets.
const (
	AgeNew    AgeBracket = "new"
	AgeUpTo5  AgeBracket = "up_to_5"
	AgeUpTo10 AgeBracket = "up_to_10"
	AgeUpTo20 AgeBracket = "up_to_20"
	AgeOver20 AgeBracket = "over_20"
)

// SortKey selects the ordering of search results.
type SortKey string

// Supported sort keys.
const (
	SortRelevance   SortKey = "relevance"
	SortPrice       SortKey = "price"
	SortPricePerM2  SortKey = "price_per_m2"
	SortArea        SortKey = "area"
	SortDate        SortKey = "date"
	SortOpportunity SortKey = "opportunity_score"
)

// SortOrder is the direction of a sort.
type SortOrder string

// Supported sort orders.
const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// SavedSearch is a named snapshot of filter criteria and query.
type SavedSearch struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Filters Criteria `json:"filters"`
	Query   *string  `json:"query,omitempty"`
}

// RecentSearch is an automatically recorded free-text query.
type RecentSearch struct {
	ID        string
	Query     string
	Timestamp time.Time
}

type recentSearchJSON struct {
	ID        string `json:"id"`
	Query     string `json:"query"`
	Timestamp int64  `json:"timestamp"`
}

// MarshalJSON encodes the timestamp as Unix milliseconds.
func (r RecentSearch) MarshalJSON() ([]byte, error) {
	return json.Marshal(recentSearchJSON{
		ID:        r.ID,
		Query:     r.Query,
		Timestamp: r.Timestamp.UnixMilli(),
	})
}

// UnmarshalJSON decodes a timestamp stored as Unix milliseconds.
func (r *RecentSearch) UnmarshalJSON(data []byte) error {
	var raw recentSearchJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.ID = raw.ID
	r.Query = raw.Query
	r.Timestamp = time.UnixMilli(raw.Timestamp).UTC()
	return nil
}

// Property is a single listing as returned by the listings source.
type Property struct {
	ID               string
	Title            string
	Operation        Operation
	Type             PropertyType
	Price            float64
	Currency         Currency
	AreaM2           float64
	Bedrooms         int
	Bathrooms        int
	Parking          int
	AgeYears         int
	Neighborhood     string
	Amenities        []string
	IsOpportunity    bool
	OpportunityScore float64
	Link             string
	PublishedAt      time.Time
}

// PricePerM2 returns the price per square metre, or 0 when the area is unknown.
func (p Property) PricePerM2() float64 {
	if p.AreaM2 <= 0 {
		return 0
	}
	return p.Price / p.AreaM2
}

// PropertiesResponse is one page of search results.
type PropertiesResponse struct {
	Items   []Property
	Total   int
	Page    int
	Limit   int
	HasMore bool
}
