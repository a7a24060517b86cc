package query

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"hermannm.dev/enumnames"
)

type ValueKind uint8

const (
	ValueKindNull ValueKind = iota + 1
	ValueKindString
	ValueKindNumber
	ValueKindBoolean
)

var valueKindMap = enumnames.NewMap(map[ValueKind]string{
	ValueKindNull:    "NULL",
	ValueKindString:  "STRING",
	ValueKindNumber:  "NUMBER",
	ValueKindBoolean: "BOOLEAN",
})

func (kind ValueKind) IsValid() bool {
	return valueKindMap.ContainsEnumValue(kind)
}

func (kind ValueKind) String() string {
	return valueKindMap.GetNameOrFallback(kind, "INVALID_VALUE_KIND")
}

// Value is the closed set of scalar values that dimensions and filter operands can take:
// null, string, number or boolean. The zero Value is null.
type Value struct {
	kind    ValueKind
	str     string
	num     float64
	boolean bool
}

func NullValue() Value {
	return Value{kind: ValueKindNull}
}

func StringValue(value string) Value {
	return Value{kind: ValueKindString, str: value}
}

func NumberValue(value float64) Value {
	return Value{kind: ValueKindNumber, num: value}
}

func BooleanValue(value bool) Value {
	return Value{kind: ValueKindBoolean, boolean: value}
}

func (value Value) Kind() ValueKind {
	if value.kind == 0 {
		return ValueKindNull
	}
	return value.kind
}

func (value Value) StringValue() (str string, ok bool) {
	return value.str, value.kind == ValueKindString
}

func (value Value) NumberValue() (num float64, ok bool) {
	return value.num, value.kind == ValueKindNumber
}

func (value Value) BooleanValue() (boolean bool, ok bool) {
	return value.boolean, value.kind == ValueKindBoolean
}

// Equals checks for exact equality, including value kind: the number 1 never equals the
// string "1".
func (value Value) Equals(other Value) bool {
	if value.Kind() != other.Kind() {
		return false
	}

	switch value.Kind() {
	case ValueKindNull:
		return true
	case ValueKindString:
		return value.str == other.str
	case ValueKindNumber:
		return value.num == other.num
	case ValueKindBoolean:
		return value.boolean == other.boolean
	default:
		return false
	}
}

// Compare orders two values of the same kind, returning a negative number if value is less than
// other, 0 if equal, and a positive number otherwise. Strings order lexically, numbers
// numerically. Comparing across kinds, or comparing nulls or booleans, is an error.
func (value Value) Compare(other Value) (int, error) {
	if value.Kind() != other.Kind() {
		return 0, fmt.Errorf(
			"cannot compare value of kind %v against value of kind %v",
			value.Kind(),
			other.Kind(),
		)
	}

	switch value.Kind() {
	case ValueKindString:
		return strings.Compare(value.str, other.str), nil
	case ValueKindNumber:
		switch {
		case value.num < other.num:
			return -1, nil
		case value.num > other.num:
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return 0, fmt.Errorf("values of kind %v have no defined ordering", value.Kind())
	}
}

func (value Value) String() string {
	switch value.Kind() {
	case ValueKindString:
		return value.str
	case ValueKindNumber:
		return strconv.FormatFloat(value.num, 'g', -1, 64)
	case ValueKindBoolean:
		return strconv.FormatBool(value.boolean)
	default:
		return "null"
	}
}

func (value Value) MarshalJSON() ([]byte, error) {
	switch value.Kind() {
	case ValueKindString:
		return json.Marshal(value.str)
	case ValueKindNumber:
		return json.Marshal(value.num)
	case ValueKindBoolean:
		return json.Marshal(value.boolean)
	default:
		return []byte("null"), nil
	}
}

func (value *Value) UnmarshalJSON(bytes []byte) error {
	var decoded any
	if err := json.Unmarshal(bytes, &decoded); err != nil {
		return err
	}

	switch decoded := decoded.(type) {
	case nil:
		*value = NullValue()
	case string:
		*value = StringValue(decoded)
	case float64:
		*value = NumberValue(decoded)
	case bool:
		*value = BooleanValue(decoded)
	default:
		return fmt.Errorf("expected scalar JSON value, got '%s'", string(bytes))
	}

	return nil
}
