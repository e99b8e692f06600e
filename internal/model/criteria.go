package model

import (
	"encoding/json"
	"slices"
)

// Criteria is the active set of constraints used to query listings.
// Nil pointers mean the constraint is not set.
type Criteria struct {
	Operation         *Operation     `json:"operationType,omitempty"`
	PropertyTypes     []PropertyType `json:"propertyTypes"`
	PriceMin          *float64       `json:"priceMin,omitempty"`
	PriceMax          *float64       `json:"priceMax,omitempty"`
	Currency          Currency       `json:"currency"`
	AreaMin           *float64       `json:"areaMin,omitempty"`
	AreaMax           *float64       `json:"areaMax,omitempty"`
	Bedrooms          *int           `json:"bedrooms,omitempty"`
	Bathrooms         *int           `json:"bathrooms,omitempty"`
	Parking           *int           `json:"parking,omitempty"`
	Age               *AgeBracket    `json:"age,omitempty"`
	Neighborhoods     []string       `json:"neighborhoods"`
	Amenities         []string       `json:"amenities"`
	OnlyOpportunities bool           `json:"onlyOpportunities"`
	SortBy            SortKey        `json:"sortBy"`
	SortOrder         SortOrder      `json:"sortOrder"`
}

// DefaultCriteria returns the criteria a fresh session starts with.
func DefaultCriteria() Criteria {
	return Criteria{
		PropertyTypes: []PropertyType{},
		Currency:      CurrencyUSD,
		Neighborhoods: []string{},
		Amenities:     []string{},
		SortBy:        SortRelevance,
		SortOrder:     SortDesc,
	}
}

// UnmarshalJSON starts from the defaults so missing fields and null lists
// never leave the criteria without a currency or with nil lists.
func (c *Criteria) UnmarshalJSON(data []byte) error {
	type plain Criteria
	v := plain(DefaultCriteria())
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = Criteria(v)
	c.normalize()
	return nil
}

func (c *Criteria) normalize() {
	def := DefaultCriteria()
	if c.Currency == "" {
		c.Currency = def.Currency
	}
	if c.SortBy == "" {
		c.SortBy = def.SortBy
	}
	if c.SortOrder == "" {
		c.SortOrder = def.SortOrder
	}
	if c.PropertyTypes == nil {
		c.PropertyTypes = []PropertyType{}
	}
	if c.Neighborhoods == nil {
		c.Neighborhoods = []string{}
	}
	if c.Amenities == nil {
		c.Amenities = []string{}
	}
}

// Clone returns a deep copy of the criteria.
func (c Criteria) Clone() Criteria {
	out := c
	out.Operation = clonePtr(c.Operation)
	out.PriceMin = clonePtr(c.PriceMin)
	out.PriceMax = clonePtr(c.PriceMax)
	out.AreaMin = clonePtr(c.AreaMin)
	out.AreaMax = clonePtr(c.AreaMax)
	out.Bedrooms = clonePtr(c.Bedrooms)
	out.Bathrooms = clonePtr(c.Bathrooms)
	out.Parking = clonePtr(c.Parking)
	out.Age = clonePtr(c.Age)
	out.PropertyTypes = cloneList(c.PropertyTypes)
	out.Neighborhoods = cloneList(c.Neighborhoods)
	out.Amenities = cloneList(c.Amenities)
	return out
}

// ActiveCount returns how many filter categories are active. A category
// contributes at most one regardless of how many values it holds.
func (c Criteria) ActiveCount() int {
	n := 0
	for _, active := range []bool{
		c.Operation != nil,
		len(c.PropertyTypes) > 0,
		c.PriceMin != nil || c.PriceMax != nil,
		c.AreaMin != nil || c.AreaMax != nil,
		c.Bedrooms != nil,
		c.Bathrooms != nil,
		c.Parking != nil,
		c.Age != nil,
		len(c.Neighborhoods) > 0,
		len(c.Amenities) > 0,
		c.OnlyOpportunities,
	} {
		if active {
			n++
		}
	}
	return n
}

// CriteriaField names a single field of Criteria.
type CriteriaField string

// Criteria fields addressable by a patch.
const (
	FieldOperation         CriteriaField = "operationType"
	FieldPropertyTypes     CriteriaField = "propertyTypes"
	FieldPriceMin          CriteriaField = "priceMin"
	FieldPriceMax          CriteriaField = "priceMax"
	FieldCurrency          CriteriaField = "currency"
	FieldAreaMin           CriteriaField = "areaMin"
	FieldAreaMax           CriteriaField = "areaMax"
	FieldBedrooms          CriteriaField = "bedrooms"
	FieldBathrooms         CriteriaField = "bathrooms"
	FieldParking           CriteriaField = "parking"
	FieldAge               CriteriaField = "age"
	FieldNeighborhoods     CriteriaField = "neighborhoods"
	FieldAmenities         CriteriaField = "amenities"
	FieldOnlyOpportunities CriteriaField = "onlyOpportunities"
	FieldSortBy            CriteriaField = "sortBy"
	FieldSortOrder         CriteriaField = "sortOrder"
)

// CriteriaPatch is a partial update of Criteria. Nil pointers and nil
// slices leave the field unchanged; a non-nil slice (even empty) replaces
// it. Fields listed in Clear are reset before the overrides are applied.
type CriteriaPatch struct {
	Operation         *Operation
	PropertyTypes     []PropertyType
	PriceMin          *float64
	PriceMax          *float64
	Currency          *Currency
	AreaMin           *float64
	AreaMax           *float64
	Bedrooms          *int
	Bathrooms         *int
	Parking           *int
	Age               *AgeBracket
	Neighborhoods     []string
	Amenities         []string
	OnlyOpportunities *bool
	SortBy            *SortKey
	SortOrder         *SortOrder

	Clear []CriteriaField
}

// IsEmpty reports whether applying the patch would be a no-op.
func (p CriteriaPatch) IsEmpty() bool {
	return p.Operation == nil && p.PropertyTypes == nil && p.PriceMin == nil &&
		p.PriceMax == nil && p.Currency == nil && p.AreaMin == nil && p.AreaMax == nil &&
		p.Bedrooms == nil && p.Bathrooms == nil && p.Parking == nil && p.Age == nil &&
		p.Neighborhoods == nil && p.Amenities == nil && p.OnlyOpportunities == nil &&
		p.SortBy == nil && p.SortOrder == nil && len(p.Clear) == 0
}

// Apply returns a copy of c with the patch merged in field by field.
// Values are not validated.
func (c Criteria) Apply(p CriteriaPatch) Criteria {
	out := c.Clone()
	def := DefaultCriteria()

	for _, f := range p.Clear {
		switch f {
		case FieldOperation:
			out.Operation = nil
		case FieldPropertyTypes:
			out.PropertyTypes = []PropertyType{}
		case FieldPriceMin:
			out.PriceMin = nil
		case FieldPriceMax:
			out.PriceMax = nil
		case FieldCurrency:
			out.Currency = def.Currency
		case FieldAreaMin:
			out.AreaMin = nil
		case FieldAreaMax:
			out.AreaMax = nil
		case FieldBedrooms:
			out.Bedrooms = nil
		case FieldBathrooms:
			out.Bathrooms = nil
		case FieldParking:
			out.Parking = nil
		case FieldAge:
			out.Age = nil
		case FieldNeighborhoods:
			out.Neighborhoods = []string{}
		case FieldAmenities:
			out.Amenities = []string{}
		case FieldOnlyOpportunities:
			out.OnlyOpportunities = false
		case FieldSortBy:
			out.SortBy = def.SortBy
		case FieldSortOrder:
			out.SortOrder = def.SortOrder
		}
	}

	if p.Operation != nil {
		out.Operation = clonePtr(p.Operation)
	}
	if p.PropertyTypes != nil {
		out.PropertyTypes = cloneList(p.PropertyTypes)
	}
	if p.PriceMin != nil {
		out.PriceMin = clonePtr(p.PriceMin)
	}
	if p.PriceMax != nil {
		out.PriceMax = clonePtr(p.PriceMax)
	}
	if p.Currency != nil && *p.Currency != "" {
		out.Currency = *p.Currency
	}
	if p.AreaMin != nil {
		out.AreaMin = clonePtr(p.AreaMin)
	}
	if p.AreaMax != nil {
		out.AreaMax = clonePtr(p.AreaMax)
	}
	if p.Bedrooms != nil {
		out.Bedrooms = clonePtr(p.Bedrooms)
	}
	if p.Bathrooms != nil {
		out.Bathrooms = clonePtr(p.Bathrooms)
	}
	if p.Parking != nil {
		out.Parking = clonePtr(p.Parking)
	}
	if p.Age != nil {
		out.Age = clonePtr(p.Age)
	}
	if p.Neighborhoods != nil {
		out.Neighborhoods = cloneList(p.Neighborhoods)
	}
	if p.Amenities != nil {
		out.Amenities = cloneList(p.Amenities)
	}
	if p.OnlyOpportunities != nil {
		out.OnlyOpportunities = *p.OnlyOpportunities
	}
	if p.SortBy != nil && *p.SortBy != "" {
		out.SortBy = *p.SortBy
	}
	if p.SortOrder != nil && *p.SortOrder != "" {
		out.SortOrder = *p.SortOrder
	}
	return out
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneList[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return slices.Clone(s)
}
