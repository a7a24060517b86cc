package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterOperators(t *testing.T) {
	tests := []struct {
		name         string
		filter       Filter
		fieldValue   Value
		fieldPresent bool
		want         bool
	}{
		{
			"equals matches same string",
			Filter{FieldName: "country", Operator: OperatorEquals, Value: StringValue("US")},
			StringValue("US"), true, true,
		},
		{
			"equals requires same kind",
			Filter{FieldName: "code", Operator: OperatorEquals, Value: StringValue("1")},
			NumberValue(1), true, false,
		},
		{
			"not equals matches different value",
			Filter{FieldName: "country", Operator: OperatorNotEquals, Value: StringValue("US")},
			StringValue("CA"), true, true,
		},
		{
			"not equals never matches missing field",
			Filter{FieldName: "country", Operator: OperatorNotEquals, Value: StringValue("US")},
			Value{}, false, false,
		},
		{
			"contains matches substring",
			Filter{FieldName: "page", Operator: OperatorContains, Value: StringValue("check")},
			StringValue("/cart/checkout"), true, true,
		},
		{
			"contains fails on non-string field without error",
			Filter{FieldName: "views", Operator: OperatorContains, Value: StringValue("1")},
			NumberValue(123), true, false,
		},
		{
			"greater than on numbers",
			Filter{FieldName: "views", Operator: OperatorGreaterThan, Value: NumberValue(10)},
			NumberValue(11), true, true,
		},
		{
			"greater than is strict",
			Filter{FieldName: "views", Operator: OperatorGreaterThan, Value: NumberValue(10)},
			NumberValue(10), true, false,
		},
		{
			"less than on strings orders lexically",
			Filter{FieldName: "country", Operator: OperatorLessThan, Value: StringValue("M")},
			StringValue("CA"), true, true,
		},
		{
			"between is inclusive at both bounds",
			Filter{
				FieldName: "views",
				Operator:  OperatorBetween,
				Values:    []Value{NumberValue(10), NumberValue(20)},
			},
			NumberValue(20), true, true,
		},
		{
			"between rejects value outside range",
			Filter{
				FieldName: "views",
				Operator:  OperatorBetween,
				Values:    []Value{NumberValue(10), NumberValue(20)},
			},
			NumberValue(21), true, false,
		},
		{
			"in matches list member",
			Filter{
				FieldName: "country",
				Operator:  OperatorIn,
				Values:    []Value{StringValue("US"), StringValue("CA")},
			},
			StringValue("CA"), true, true,
		},
		{
			"in rejects non-member",
			Filter{
				FieldName: "country",
				Operator:  OperatorIn,
				Values:    []Value{StringValue("US"), StringValue("CA")},
			},
			StringValue("MX"), true, false,
		},
		{
			"regex matches pattern",
			Filter{FieldName: "page", Operator: OperatorRegex, Pattern: `^/cart/.*$`},
			StringValue("/cart/checkout"), true, true,
		},
		{
			"regex fails on non-string field",
			Filter{FieldName: "views", Operator: OperatorRegex, Pattern: `.*`},
			NumberValue(1), true, false,
		},
		{
			"missing field is a non-match for equals",
			Filter{FieldName: "country", Operator: OperatorEquals, Value: StringValue("US")},
			Value{}, false, false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.filter.Validate())
			assert.Equal(t, tt.want, tt.filter.Matches(tt.fieldValue, tt.fieldPresent))
		})
	}
}

// The concrete case from the engine's contract: an IN filter over country keeps exactly the
// listed countries.
func TestInFilterKeepsOnlyListedValues(t *testing.T) {
	filter := Filter{
		FieldName: "country",
		Operator:  OperatorIn,
		Values:    []Value{StringValue("US"), StringValue("CA")},
	}
	require.NoError(t, filter.Validate())

	countries := []string{"US", "CA", "MX"}
	var matched []string
	for _, country := range countries {
		if filter.Matches(StringValue(country), true) {
			matched = append(matched, country)
		}
	}

	assert.Equal(t, []string{"US", "CA"}, matched)
}

func TestFilterValidation(t *testing.T) {
	tests := []struct {
		name    string
		filter  Filter
		wantErr bool
	}{
		{
			"valid equals filter",
			Filter{FieldName: "country", Operator: OperatorEquals, Value: StringValue("US")},
			false,
		},
		{
			"missing field name",
			Filter{Operator: OperatorEquals, Value: StringValue("US")},
			true,
		},
		{
			"invalid operator",
			Filter{FieldName: "country", Operator: FilterOperator(99)},
			true,
		},
		{
			"between requires exactly two values",
			Filter{
				FieldName: "views",
				Operator:  OperatorBetween,
				Values:    []Value{NumberValue(1)},
			},
			true,
		},
		{
			"between bounds must be ordered",
			Filter{
				FieldName: "views",
				Operator:  OperatorBetween,
				Values:    []Value{NumberValue(20), NumberValue(10)},
			},
			true,
		},
		{
			"between bounds must share a kind",
			Filter{
				FieldName: "views",
				Operator:  OperatorBetween,
				Values:    []Value{NumberValue(10), StringValue("20")},
			},
			true,
		},
		{
			"in requires non-empty list",
			Filter{FieldName: "country", Operator: OperatorIn},
			true,
		},
		{
			"greater than rejects boolean operand",
			Filter{FieldName: "active", Operator: OperatorGreaterThan, Value: BooleanValue(true)},
			true,
		},
		{
			"invalid regex pattern rejected at validation time",
			Filter{FieldName: "page", Operator: OperatorRegex, Pattern: `[unclosed`},
			true,
		},
		{
			"regex requires pattern",
			Filter{FieldName: "page", Operator: OperatorRegex},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValueEqualsAndCompare(t *testing.T) {
	assert.True(t, StringValue("a").Equals(StringValue("a")))
	assert.False(t, StringValue("1").Equals(NumberValue(1)))
	assert.True(t, NullValue().Equals(Value{}))

	comparison, err := NumberValue(1).Compare(NumberValue(2))
	require.NoError(t, err)
	assert.Equal(t, -1, comparison)

	_, err = NumberValue(1).Compare(StringValue("2"))
	assert.Error(t, err)

	_, err = BooleanValue(true).Compare(BooleanValue(false))
	assert.Error(t, err)
}
