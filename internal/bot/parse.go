package bot

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"props_bot/internal/model"
)

var (
	operations = []model.Operation{model.OperationSale, model.OperationRent}
	propTypes  = []model.PropertyType{
		model.TypeApartment, model.TypeHouse, model.TypePH,
		model.TypeLand, model.TypeOffice, model.TypeCommercial,
	}
	ageBrackets = []model.AgeBracket{
		model.AgeNew, model.AgeUpTo5, model.AgeUpTo10, model.AgeUpTo20, model.AgeOver20,
	}
	sortKeys = []model.SortKey{
		model.SortRelevance, model.SortPrice, model.SortPricePerM2,
		model.SortArea, model.SortDate, model.SortOpportunity,
	}
)

// fieldAliases maps user-facing field names to criteria fields. Range
// fields map to both bounds.
var fieldAliases = map[string][]model.CriteriaField{
	"op":            {model.FieldOperation},
	"operation":     {model.FieldOperation},
	"type":          {model.FieldPropertyTypes},
	"types":         {model.FieldPropertyTypes},
	"price":         {model.FieldPriceMin, model.FieldPriceMax},
	"currency":      {model.FieldCurrency},
	"area":          {model.FieldAreaMin, model.FieldAreaMax},
	"bedrooms":      {model.FieldBedrooms},
	"bathrooms":     {model.FieldBathrooms},
	"parking":       {model.FieldParking},
	"age":           {model.FieldAge},
	"barrio":        {model.FieldNeighborhoods},
	"barrios":       {model.FieldNeighborhoods},
	"neighborhoods": {model.FieldNeighborhoods},
	"amenities":     {model.FieldAmenities},
	"opportunities": {model.FieldOnlyOpportunities},
}

// ParseSetArgs parses "/set <field> <value>" into a criteria patch.
func ParseSetArgs(args string) (model.CriteriaPatch, error) {
	parts := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		return model.CriteriaPatch{}, fmt.Errorf("usage: /set <field> <value>")
	}
	field := strings.ToLower(parts[0])
	value := strings.TrimSpace(parts[1])

	var p model.CriteriaPatch
	switch field {
	case "op", "operation":
		op, err := parseEnum(value, operations)
		if err != nil {
			return p, err
		}
		p.Operation = &op
	case "type", "types":
		types, err := parseEnumList(value, propTypes)
		if err != nil {
			return p, err
		}
		p.PropertyTypes = types
	case "price":
		lo, hi, err := ParseRange(value)
		if err != nil {
			return p, err
		}
		p.PriceMin, p.PriceMax = lo, hi
		p.Clear = clearMissing(lo, hi, model.FieldPriceMin, model.FieldPriceMax)
	case "currency":
		cur := model.Currency(strings.ToUpper(value))
		if cur != model.CurrencyUSD && cur != model.CurrencyARS {
			return p, fmt.Errorf("invalid currency %q, use: USD, ARS", value)
		}
		p.Currency = &cur
	case "area":
		lo, hi, err := ParseRange(value)
		if err != nil {
			return p, err
		}
		p.AreaMin, p.AreaMax = lo, hi
		p.Clear = clearMissing(lo, hi, model.FieldAreaMin, model.FieldAreaMax)
	case "bedrooms", "bathrooms", "parking":
		n, err := strconv.Atoi(value)
		if err != nil {
			return p, fmt.Errorf("%s must be a whole number", field)
		}
		switch field {
		case "bedrooms":
			p.Bedrooms = &n
		case "bathrooms":
			p.Bathrooms = &n
		default:
			p.Parking = &n
		}
	case "age":
		age, err := parseEnum(value, ageBrackets)
		if err != nil {
			return p, err
		}
		p.Age = &age
	case "barrio", "barrios", "neighborhoods":
		p.Neighborhoods = splitList(value)
	case "amenities":
		p.Amenities = splitList(value)
	case "opportunities":
		on, err := parseSwitch(value)
		if err != nil {
			return p, err
		}
		p.OnlyOpportunities = &on
	default:
		return p, fmt.Errorf("unknown field %q", parts[0])
	}
	return p, nil
}

// ParseUnsetArgs parses "/unset <field>..." into a patch that clears them.
func ParseUnsetArgs(args string) (model.CriteriaPatch, error) {
	names := strings.Fields(args)
	if len(names) == 0 {
		return model.CriteriaPatch{}, fmt.Errorf("usage: /unset <field> [field...]")
	}
	var p model.CriteriaPatch
	for _, name := range names {
		fields, ok := fieldAliases[strings.ToLower(name)]
		if !ok {
			return model.CriteriaPatch{}, fmt.Errorf("unknown field %q", name)
		}
		p.Clear = append(p.Clear, fields...)
	}
	return p, nil
}

// ParseSortArgs parses "/sort <key> [asc|desc]".
func ParseSortArgs(args string) (model.CriteriaPatch, error) {
	parts := strings.Fields(args)
	if len(parts) == 0 || len(parts) > 2 {
		return model.CriteriaPatch{}, fmt.Errorf("usage: /sort <key> [asc|desc]")
	}
	key, err := parseEnum(parts[0], sortKeys)
	if err != nil {
		return model.CriteriaPatch{}, err
	}
	p := model.CriteriaPatch{SortBy: &key}
	if len(parts) == 2 {
		order, err := parseEnum(parts[1], []model.SortOrder{model.SortAsc, model.SortDesc})
		if err != nil {
			return model.CriteriaPatch{}, err
		}
		p.SortOrder = &order
	}
	return p, nil
}

// ParseRange parses "min-max" where either side may be empty. A single
// number is a lower bound.
func ParseRange(s string) (*float64, *float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	loStr, hiStr, hasDash := strings.Cut(s, "-")
	if !hasDash {
		hiStr = ""
	}

	lo, err := parseBound(loStr)
	if err != nil {
		return nil, nil, err
	}
	hi, err := parseBound(hiStr)
	if err != nil {
		return nil, nil, err
	}
	if lo == nil && hi == nil {
		return nil, nil, fmt.Errorf("range needs at least one bound, e.g. 100000-200000")
	}
	return lo, hi, nil
}

func parseBound(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", s)
	}
	return &v, nil
}

// ParseIDArg extracts a single identifier from a command argument string.
func ParseIDArg(args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", fmt.Errorf("ID is required")
	}
	return fields[0], nil
}

// maxPage bounds user supplied page numbers.
const maxPage = 1000

// ParsePageArg parses an optional page number in 1..maxPage, defaulting to 1.
func ParsePageArg(args string) (int, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(s)
	if err != nil || page < 1 || page > maxPage {
		return 0, fmt.Errorf("invalid page %q", s)
	}
	return page, nil
}

func clearMissing(lo, hi *float64, loField, hiField model.CriteriaField) []model.CriteriaField {
	var fields []model.CriteriaField
	if lo == nil {
		fields = append(fields, loField)
	}
	if hi == nil {
		fields = append(fields, hiField)
	}
	return fields
}

func parseEnum[T ~string](s string, allowed []T) (T, error) {
	v := T(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(allowed, v) {
		var zero T
		return zero, fmt.Errorf("invalid value %q, use: %s", s, joinValues(allowed))
	}
	return v, nil
}

func parseEnumList[T ~string](s string, allowed []T) ([]T, error) {
	var out []T
	for _, item := range splitList(s) {
		v, err := parseEnum(item, allowed)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "yes", "true", "1":
		return true, nil
	case "off", "no", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid value %q, use: on, off", s)
}

// splitList splits a comma separated list, dropping blank items. The
// result is never nil.
func splitList(s string) []string {
	out := []string{}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" && !slices.Contains(out, item) {
			out = append(out, item)
		}
	}
	return out
}

func joinValues[T ~string](vals []T) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}
