// Copyright 2025 Groundline

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gdc

import (
	"strings"

	"github.com/stockparfait/errors"
)

// filterShape is the human-readable shape requirement quoted by validation
// errors.
const filterShape = "filters must be a sequence of " +
	`{"columnName": string, "operator": string, "value": scalar} records`

// Operator strings commonly understood by the server. The set is open-ended
// and vendor-defined; the client checks only the structural shape of a
// filter, and the server remains authoritative for operator semantics.
const (
	OpEqual       = "eq"
	OpGreaterThan = "gt"
	OpLessThan    = "lt"
	OpGreaterOrEq = "gte"
	OpLessOrEq    = "lte"
	OpIn          = "in"
)

// Filter is a single predicate restricting a table query. The JSON field
// names are part of the wire contract with the server.
type Filter struct {
	ColumnName string `json:"columnName"`
	Operator   string `json:"operator"`
	Value      Value  `json:"value"`
}

// Eq creates an equality filter.
func Eq(column string, value Value) Filter {
	return Filter{ColumnName: column, Operator: OpEqual, Value: value}
}

// Gt creates a strict inequality filter: the column's value must be > value.
func Gt(column string, value Value) Filter {
	return Filter{ColumnName: column, Operator: OpGreaterThan, Value: value}
}

// Lt creates a strict inequality filter: the column's value must be < value.
func Lt(column string, value Value) Filter {
	return Filter{ColumnName: column, Operator: OpLessThan, Value: value}
}

// Ge creates an inequality filter: the column's value must be >= value.
func Ge(column string, value Value) Filter {
	return Filter{ColumnName: column, Operator: OpGreaterOrEq, Value: value}
}

// Le creates an inequality filter: the column's value must be <= value.
func Le(column string, value Value) Filter {
	return Filter{ColumnName: column, Operator: OpLessOrEq, Value: value}
}

// In creates a set-membership filter: the column's value must equal one of
// the given values.
func In(column string, values ...Value) Filter {
	return Filter{ColumnName: column, Operator: OpIn, Value: values}
}

// FilterSet is an ordered sequence of filters; the order is preserved when
// forwarded to the server. An empty set matches all rows.
type FilterSet []Filter

// Copy creates a copy of the filter set.
func (fs FilterSet) Copy() FilterSet {
	if fs == nil {
		return nil
	}
	fs2 := make(FilterSet, len(fs))
	copy(fs2, fs)
	return fs2
}

// Validate checks that every filter in the set carries all three required
// fields. It never mutates the set, performs no semantic checks of operators
// or value types, and accepts an empty set. The error wraps ErrInvalidFilter.
func (fs FilterSet) Validate() error {
	for i, f := range fs {
		var missing []string
		if f.ColumnName == "" {
			missing = append(missing, "columnName")
		}
		if f.Operator == "" {
			missing = append(missing, "operator")
		}
		if f.Value == nil {
			missing = append(missing, "value")
		}
		if len(missing) > 0 {
			return errors.Annotate(ErrInvalidFilter,
				"filter %d is missing %s; %s", i, strings.Join(missing, ", "), filterShape)
		}
	}
	return nil
}

// ParseFilters converts a generic JSON value, as read by the encoding/json
// package, into a validated FilterSet. It fails, wrapping ErrInvalidFilter,
// when js is not a sequence, an element is not a mapping, or an element is
// missing a required field.
func ParseFilters(js interface{}) (FilterSet, error) {
	if js == nil {
		return FilterSet{}, nil
	}
	seq, ok := js.([]interface{})
	if !ok {
		return nil, errors.Annotate(ErrInvalidFilter,
			"expected a sequence but found %T; %s", js, filterShape)
	}
	fs := make(FilterSet, len(seq))
	for i, el := range seq {
		m, ok := el.(map[string]interface{})
		if !ok {
			return nil, errors.Annotate(ErrInvalidFilter,
				"element %d is %T, not a mapping; %s", i, el, filterShape)
		}
		var f Filter
		f.ColumnName, _ = m["columnName"].(string)
		f.Operator, _ = m["operator"].(string)
		f.Value = m["value"]
		for k := range m {
			switch k {
			case "columnName", "operator", "value":
			default:
				return nil, errors.Annotate(ErrInvalidFilter,
					"element %d has an unsupported field '%s'; %s", i, k, filterShape)
			}
		}
		fs[i] = f
	}
	if err := fs.Validate(); err != nil {
		return nil, err
	}
	return fs, nil
}
