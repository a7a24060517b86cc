package query

import (
	"hermannm.dev/enumnames"
)

type FilterOperator uint8

const (
	OperatorEquals FilterOperator = iota + 1
	OperatorNotEquals
	OperatorContains
	OperatorGreaterThan
	OperatorLessThan
	OperatorBetween
	OperatorIn
	OperatorRegex
)

var filterOperatorMap = enumnames.NewMap(map[FilterOperator]string{
	OperatorEquals:      "EQUALS",
	OperatorNotEquals:   "NOT_EQUALS",
	OperatorContains:    "CONTAINS",
	OperatorGreaterThan: "GREATER_THAN",
	OperatorLessThan:    "LESS_THAN",
	OperatorBetween:     "BETWEEN",
	OperatorIn:          "IN",
	OperatorRegex:       "REGEX",
})

func (operator FilterOperator) IsValid() bool {
	return filterOperatorMap.ContainsEnumValue(operator)
}

func (operator FilterOperator) String() string {
	return filterOperatorMap.GetNameOrFallback(operator, "INVALID_FILTER_OPERATOR")
}

func (operator FilterOperator) MarshalJSON() ([]byte, error) {
	return filterOperatorMap.MarshalToNameJSON(operator)
}

func (operator *FilterOperator) UnmarshalJSON(bytes []byte) error {
	return filterOperatorMap.UnmarshalFromNameJSON(bytes, operator)
}
