package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"hermannm.dev/wrap"
)

// Filter tests a single field against an operator-dependent operand. Which operand field must
// be set depends on the operator:
//   - EQUALS / NOT_EQUALS / CONTAINS / GREATER_THAN / LESS_THAN use Value
//   - BETWEEN uses Values (exactly 2, ordered low to high)
//   - IN uses Values (at least 1)
//   - REGEX uses Pattern
type Filter struct {
	FieldName string         `json:"fieldName"`
	Operator  FilterOperator `json:"operator"`
	Value     Value          `json:"value,omitempty"`
	Values    []Value        `json:"values,omitempty"`
	Pattern   string         `json:"pattern,omitempty"`

	compiledPattern *regexp.Regexp
}

// Validate checks that the filter's operator and operand shape agree, and compiles REGEX
// patterns so that an invalid pattern is rejected here rather than at evaluation time.
func (filter *Filter) Validate() error {
	if filter.FieldName == "" {
		return errors.New("filter is missing field name")
	}
	if !filter.Operator.IsValid() {
		return fmt.Errorf("invalid operator in filter on field '%s'", filter.FieldName)
	}

	switch filter.Operator {
	case OperatorEquals, OperatorNotEquals, OperatorContains:
		// Any scalar operand (including null) is permitted
	case OperatorGreaterThan, OperatorLessThan:
		kind := filter.Value.Kind()
		if kind != ValueKindNumber && kind != ValueKindString {
			return fmt.Errorf(
				"%v filter on field '%s' requires a number or string operand, got %v",
				filter.Operator,
				filter.FieldName,
				kind,
			)
		}
	case OperatorBetween:
		if len(filter.Values) != 2 {
			return fmt.Errorf(
				"BETWEEN filter on field '%s' requires exactly 2 values, got %d",
				filter.FieldName,
				len(filter.Values),
			)
		}

		ordered, err := filter.Values[0].Compare(filter.Values[1])
		if err != nil {
			return wrap.Errorf(err, "invalid BETWEEN bounds on field '%s'", filter.FieldName)
		}
		if ordered > 0 {
			return fmt.Errorf(
				"BETWEEN bounds on field '%s' must be ordered low to high",
				filter.FieldName,
			)
		}
	case OperatorIn:
		if len(filter.Values) == 0 {
			return fmt.Errorf(
				"IN filter on field '%s' requires a non-empty value list",
				filter.FieldName,
			)
		}
	case OperatorRegex:
		if filter.Pattern == "" {
			return fmt.Errorf("REGEX filter on field '%s' is missing pattern", filter.FieldName)
		}

		compiled, err := regexp.Compile(filter.Pattern)
		if err != nil {
			return wrap.Errorf(err, "invalid REGEX pattern on field '%s'", filter.FieldName)
		}
		filter.compiledPattern = compiled
	}

	return nil
}

// Matches evaluates the filter against a field value. A missing field never matches, regardless
// of operator. Type mismatches (e.g. CONTAINS on a number) are non-matches, not errors.
func (filter *Filter) Matches(fieldValue Value, fieldPresent bool) bool {
	if !fieldPresent {
		return false
	}

	switch filter.Operator {
	case OperatorEquals:
		return fieldValue.Equals(filter.Value)
	case OperatorNotEquals:
		return !fieldValue.Equals(filter.Value)
	case OperatorContains:
		str, ok := fieldValue.StringValue()
		if !ok {
			return false
		}
		substring, ok := filter.Value.StringValue()
		if !ok {
			return false
		}
		return strings.Contains(str, substring)
	case OperatorGreaterThan:
		ordered, err := fieldValue.Compare(filter.Value)
		return err == nil && ordered > 0
	case OperatorLessThan:
		ordered, err := fieldValue.Compare(filter.Value)
		return err == nil && ordered < 0
	case OperatorBetween:
		aboveLow, err := fieldValue.Compare(filter.Values[0])
		if err != nil || aboveLow < 0 {
			return false
		}
		belowHigh, err := fieldValue.Compare(filter.Values[1])
		return err == nil && belowHigh <= 0
	case OperatorIn:
		for _, candidate := range filter.Values {
			if fieldValue.Equals(candidate) {
				return true
			}
		}
		return false
	case OperatorRegex:
		pattern := filter.compiledPattern
		if pattern == nil {
			// Validate was not called first; compile here and treat bad patterns as non-matches
			var err error
			if pattern, err = regexp.Compile(filter.Pattern); err != nil {
				return false
			}
			filter.compiledPattern = pattern
		}

		str, ok := fieldValue.StringValue()
		return ok && pattern.MatchString(str)
	default:
		return false
	}
}
