package conditionexpr

import (
	"fmt"
	"testing"

	"github.com/acksell/ddbexpr/dynamodb/ddbstore/exprerr"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustItem(t *testing.T, v any) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(v)
	require.NoError(t, err)
	return item
}

func mustValues(t *testing.T, v map[string]any) map[string]types.AttributeValue {
	t.Helper()
	out := make(map[string]types.AttributeValue, len(v))
	for k, val := range v {
		av, err := attributevalue.Marshal(val)
		require.NoError(t, err)
		out[k] = av
	}
	return out
}

func TestEvaluateScenarios(t *testing.T) {
	t.Run("attribute_exists on present attribute", func(t *testing.T) {
		err := Evaluate("attribute_exists(name)", mustItem(t, map[string]any{"name": "alice"}), nil, nil)
		assert.NoError(t, err)
	})

	t.Run("attribute_exists on empty item", func(t *testing.T) {
		err := Evaluate("attribute_exists(name)", map[string]types.AttributeValue{}, nil, nil)
		var ccf *exprerr.ConditionalCheckFailedError
		require.ErrorAs(t, err, &ccf)
		assert.Equal(t, 400, ccf.StatusCode())
	})

	t.Run("ordering comparison is rejected", func(t *testing.T) {
		err := Evaluate("age > :min", mustItem(t, map[string]any{"age": 30}), nil, mustValues(t, map[string]any{":min": 20}))
		var uerr *exprerr.UnsupportedFeatureError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, exprerr.ConditionExpression, uerr.Kind)
		assert.Contains(t, uerr.Error(), ">")
	})
}

func TestEval(t *testing.T) {
	item := mustItem(t, map[string]any{
		"name":   "alice",
		"age":    30,
		"status": "ACTIVE",
		"tags":   []string{"a"},
	})
	values := mustValues(t, map[string]any{
		":alice":  "alice",
		":bob":    "bob",
		":thirty": 30,
		":al":     "al",
		":active": "ACTIVE",
	})
	names := map[string]string{"#n": "name", "#s": "status"}

	tests := []struct {
		expr string
		want bool
	}{
		{"name = :alice", true},
		{"name = :bob", false},
		{"name <> :bob", true},
		{"#n = :alice", true},
		{"age = :thirty", true},
		{"age = :alice", false},
		{":alice = name", true},
		{"missing = :alice", false},
		{"missing <> :alice", true},
		{"attribute_exists(#n)", true},
		{"attribute_not_exists(#n)", false},
		{"attribute_not_exists(missing)", true},
		{"attribute_exists (missing)", false},
		{"begins_with(name, :al)", true},
		{"begins_with(#s, :al)", false},
		{"begins_with(age, :al)", false},
		{"begins_with(missing, :al)", false},
		{"NOT name = :bob", true},
		{"NOT (name = :alice)", false},
		{"not attribute_exists(missing)", true},
		{"name = :alice and #s = :active", true},
		{"name = :bob Or #s = :active", true},
		{"name = :bob OR #s = :alice", false},
		{"(name = :bob OR #s = :active) AND age = :thirty", true},
		{"(name = :bob OR (#s = :active AND NOT attribute_exists(missing)))", true},
		{"((((name = :alice))))", true},
		{"NOT (name = :alice OR name = :bob)", false},
		{"NOT (NOT attribute_exists(#n))", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Eval(tt.expr, EvalInput{ExpressionNames: names, ExpressionValues: values}, item)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalLongNumbers(t *testing.T) {
	item := map[string]types.AttributeValue{"n": &types.AttributeValueMemberN{Value: "12345678901234567890123"}}
	eval := func(expr, v string) bool {
		got, err := Eval(expr, EvalInput{ExpressionValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: v},
		}}, item)
		require.NoError(t, err)
		return got
	}
	assert.False(t, eval("n = :v", "12345678901234567890124"))
	assert.True(t, eval("n <> :v", "12345678901234567890124"))
	assert.True(t, eval("n = :v", "12345678901234567890123.000"))
}

func TestEvalNilItem(t *testing.T) {
	got, err := Eval("attribute_not_exists(pk)", EvalInput{}, nil)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestPrecedence(t *testing.T) {
	values := mustValues(t, map[string]any{":t": true})
	bools := []bool{false, true}

	// a, b, c are true when the attribute of the same name exists
	itemFor := func(a, b, c bool) map[string]types.AttributeValue {
		item := map[string]types.AttributeValue{}
		for name, present := range map[string]bool{"a": a, "b": b, "c": c} {
			if present {
				item[name] = values[":t"]
			}
		}
		return item
	}

	for _, a := range bools {
		for _, b := range bools {
			for _, c := range bools {
				t.Run(fmt.Sprintf("a=%v b=%v c=%v", a, b, c), func(t *testing.T) {
					item := itemFor(a, b, c)
					eval := func(expr string) bool {
						got, err := Eval(expr, EvalInput{ExpressionValues: values}, item)
						require.NoError(t, err)
						return got
					}

					// OR binds looser than AND
					assert.Equal(t, a || (b && c), eval("attribute_exists(a) OR attribute_exists(b) AND attribute_exists(c)"))
					assert.Equal(t,
						eval("attribute_exists(a) OR (attribute_exists(b) AND attribute_exists(c))"),
						eval("attribute_exists(a) OR attribute_exists(b) AND attribute_exists(c)"))
					assert.Equal(t, (a || b) && c, eval("(attribute_exists(a) OR attribute_exists(b)) AND attribute_exists(c)"))

					// NOT binds tighter than AND
					assert.Equal(t, !a && b, eval("NOT attribute_exists(a) AND attribute_exists(b)"))
					assert.Equal(t, !(a && b), eval("NOT (attribute_exists(a) AND attribute_exists(b))"))

					// redundant parentheses do not change the result
					assert.Equal(t,
						eval("attribute_exists(a) AND attribute_exists(b) OR attribute_exists(c)"),
						eval("((attribute_exists(a)) AND (attribute_exists(b))) OR ((attribute_exists(c)))"))
				})
			}
		}
	}
}

func TestEvalBuilderExpressions(t *testing.T) {
	item := mustItem(t, map[string]any{"pk": "USER#1", "email": "a@example.com"})

	tests := []struct {
		name string
		cond expression.ConditionBuilder
		want bool
	}{
		{
			name: "attribute exists",
			cond: expression.AttributeExists(expression.Name("pk")),
			want: true,
		},
		{
			name: "and of equality and not exists",
			cond: expression.Name("email").Equal(expression.Value("a@example.com")).And(expression.AttributeNotExists(expression.Name("deleted"))),
			want: true,
		},
		{
			name: "or with not equal",
			cond: expression.Name("email").NotEqual(expression.Value("a@example.com")).Or(expression.Name("pk").BeginsWith("ORG#")),
			want: false,
		},
		{
			name: "not",
			cond: expression.Not(expression.Name("pk").BeginsWith("USER#")),
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := expression.NewBuilder().WithCondition(tt.cond).Build()
			require.NoError(t, err)
			got, err := Eval(*expr.Condition(), EvalInput{
				ExpressionNames:  expr.Names(),
				ExpressionValues: expr.Values(),
			}, item)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnsupportedFeatures(t *testing.T) {
	values := mustValues(t, map[string]any{":a": 1, ":b": 2})
	tests := []struct {
		expr    string
		feature string
	}{
		{"age BETWEEN :a AND :b", "BETWEEN"},
		{"age IN (:a, :b)", "IN"},
		{"contains(tags, :a)", "contains()"},
		{"size(tags) = :a", "size()"},
		{"attribute_type(age, :a)", "attribute_type()"},
		{"tags[0] = :a", "indexed attribute paths (list[0])"},
		{"address.city = :a", "nested attribute paths (a.b)"},
		{"age < :a", "ordering comparison <"},
		{"age <= :a", "ordering comparison <="},
		{"age >= :a", "ordering comparison >="},
		// detection runs over the whole expression, also inside groups
		{"attribute_exists(a) OR (attribute_exists(b) AND age > :a)", "ordering comparison >"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := Eval(tt.expr, EvalInput{ExpressionValues: values}, nil)
			var uerr *exprerr.UnsupportedFeatureError
			require.ErrorAs(t, err, &uerr)
			assert.Equal(t, tt.feature, uerr.Feature)
			assert.Equal(t, Supported(), uerr.Supported)
			assert.ErrorIs(t, err, exprerr.ErrUnsupportedFeature)
		})
	}
}

func TestUnsupportedListIsCopied(t *testing.T) {
	_, err := Parse("size(a) = :v")
	var uerr *exprerr.UnsupportedFeatureError
	require.ErrorAs(t, err, &uerr)
	uerr.Supported[0] = "edited"

	assert.Equal(t, "attribute_exists(path)", Supported()[0])
	_, err = Parse("size(a) = :v")
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, Supported(), uerr.Supported)
}

func TestUnsupportedBeforeParseErrors(t *testing.T) {
	// the trailing garbage would be a parse error, but the unsupported
	// feature is reported first
	_, err := Parse("size(a) = :v ) (")
	assert.ErrorIs(t, err, exprerr.ErrUnsupportedFeature)

	// characters outside the grammar do not hide the unsupported function
	_, err = Parse(`contains(a, "x")`)
	var uerr *exprerr.UnsupportedFeatureError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "contains()", uerr.Feature)

	_, err = Parse("a = :v !")
	assert.ErrorIs(t, err, exprerr.ErrParse)
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"name =",
		"name :v",
		"= :v",
		"(name = :v",
		"name = :v)",
		"name = :v AND",
		"name = :v OR OR name = :v",
		"attribute_exists()",
		"attribute_exists(a, b)",
		"begins_with(a)",
		"begins_with(:v, a)",
		"unknown_fn(a)",
		"NOT NOT attribute_exists(a)",
		"a = :v b = :v",
		"name = :v !",
		"a + :v = b",
	}
	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			_, err := Parse(expr)
			var perr *exprerr.ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, exprerr.ConditionExpression, perr.Kind)
		})
	}
}

func TestParseErrorIncludesFragment(t *testing.T) {
	_, err := Parse("name = :v AND ) x")
	var perr *exprerr.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ") x", perr.Fragment)
}

func TestPlaceholderErrors(t *testing.T) {
	item := mustItem(t, map[string]any{"name": "alice"})

	t.Run("no values map", func(t *testing.T) {
		err := Evaluate("name = :v", item, nil, nil)
		var perr *exprerr.PlaceholderError
		require.ErrorAs(t, err, &perr)
		assert.False(t, perr.MapProvided)
	})

	t.Run("missing name", func(t *testing.T) {
		err := Evaluate("attribute_exists(#missing)", item, map[string]string{"#n": "name"}, nil)
		var perr *exprerr.PlaceholderError
		require.ErrorAs(t, err, &perr)
		assert.True(t, perr.MapProvided)
		assert.Equal(t, "#missing", perr.Token)
	})

	t.Run("unresolved placeholder in short-circuited branch", func(t *testing.T) {
		// the left side is true so OR never evaluates the right side,
		// the placeholder must still resolve
		err := Evaluate("attribute_exists(name) OR name = :nope", item, nil, map[string]types.AttributeValue{})
		assert.ErrorIs(t, err, exprerr.ErrUnresolvedPlaceholder)
	})
}

func TestParseString(t *testing.T) {
	cond, err := Parse("a = :a OR b = :b AND NOT attribute_exists(c)")
	require.NoError(t, err)
	assert.Equal(t, "(a = :a OR (b = :b AND (NOT attribute_exists(c))))", cond.String())
}

func TestParseOnceEvalMany(t *testing.T) {
	cond, err := Parse("#s = :active")
	require.NoError(t, err)
	bound, err := Bind(cond, EvalInput{
		ExpressionNames:  map[string]string{"#s": "status"},
		ExpressionValues: mustValues(t, map[string]any{":active": "ACTIVE"}),
	})
	require.NoError(t, err)

	active := mustItem(t, map[string]any{"status": "ACTIVE"})
	inactive := mustItem(t, map[string]any{"status": "INACTIVE"})
	assert.True(t, bound.Eval(active))
	assert.False(t, bound.Eval(inactive))
	assert.True(t, bound.Eval(active))
}
