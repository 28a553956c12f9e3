package types

import "gorm.io/gorm/clause"

type CommonFilterOperator string

const (
	CommonFilterOperatorEq    CommonFilterOperator = "eq"
	CommonFilterOperatorNotEq CommonFilterOperator = "not_eq"
	CommonFilterOperatorLt    CommonFilterOperator = "lt"
	CommonFilterOperatorLte   CommonFilterOperator = "lte"
	CommonFilterOperatorGt    CommonFilterOperator = "gt"
	CommonFilterOperatorGte   CommonFilterOperator = "gte"
	// CommonFilterOperatorRange is inclusive on both ends.
	CommonFilterOperatorRange CommonFilterOperator = "range"
	CommonFilterOperatorIn    CommonFilterOperator = "in"
)

// CommonFilter is a single column predicate. Callers must check Field
// against the columns they allow.
type CommonFilter struct {
	Field    string               `json:"field"`
	Operator CommonFilterOperator `json:"operator"`
	Values   []any                `json:"values"`
}

// Expression returns the clause for f, or nil when f can't be applied.
func (f *CommonFilter) Expression() clause.Expression {
	if len(f.Values) == 0 {
		return nil
	}
	value := f.Values[0]
	switch f.Operator {
	case CommonFilterOperatorEq:
		return clause.Eq{Column: f.Field, Value: value}
	case CommonFilterOperatorNotEq:
		return clause.Neq{Column: f.Field, Value: value}
	case CommonFilterOperatorLt:
		return clause.Lt{Column: f.Field, Value: value}
	case CommonFilterOperatorLte:
		return clause.Lte{Column: f.Field, Value: value}
	case CommonFilterOperatorGt:
		return clause.Gt{Column: f.Field, Value: value}
	case CommonFilterOperatorGte:
		return clause.Gte{Column: f.Field, Value: value}
	case CommonFilterOperatorRange:
		if len(f.Values) < 2 {
			return nil
		}
		return clause.And(clause.Gte{Column: f.Field, Value: f.Values[0]}, clause.Lte{Column: f.Field, Value: f.Values[1]})
	case CommonFilterOperatorIn:
		return clause.IN{Column: f.Field, Values: f.Values}
	default:
		return nil
	}
}
