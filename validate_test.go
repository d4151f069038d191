package loopy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nestedObjects builds a chain of n objects, each holding the next under "child".
func nestedObjects(t *testing.T, n int) *Schema {
	t.Helper()
	s, err := Object(nil)
	require.NoError(t, err)
	for i := 1; i < n; i++ {
		s, err = Object([]Property{{Name: "child", Schema: s}})
		require.NoError(t, err)
	}
	return s
}

// wideObject builds a root object with n-1 object-typed properties, for a
// total of n object nodes.
func wideObject(t *testing.T, n int) *Schema {
	t.Helper()
	props := make([]Property, 0, n-1)
	for i := 1; i < n; i++ {
		child, err := Object(nil)
		require.NoError(t, err)
		props = append(props, Property{Name: propName(i), Schema: child})
	}
	s, err := Object(props)
	require.NoError(t, err)
	return s
}

func propName(i int) string {
	return "p" + string(rune('a'+i/26)) + string(rune('a'+i%26))
}

func TestValidate_DepthBoundary(t *testing.T) {
	ok := nestedObjects(t, MaxObjectDepth)
	got, err := Validate(ok)
	require.NoError(t, err)
	assert.Same(t, ok, got, "validate returns the same tree")

	_, err = Validate(nestedObjects(t, MaxObjectDepth+1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooDeeplyNested)
}

func TestValidate_ArrayDoesNotAddObjectDepth(t *testing.T) {
	// object > array > object > array > ... only the objects count.
	s, err := Object(nil)
	require.NoError(t, err)
	for i := 1; i < MaxObjectDepth; i++ {
		s, err = Object([]Property{{Name: "list", Schema: Array(s)}})
		require.NoError(t, err)
	}
	_, err = Validate(s)
	assert.NoError(t, err)
}

func TestValidate_ObjectCountBoundary(t *testing.T) {
	_, err := Validate(wideObject(t, MaxObjectCount))
	require.NoError(t, err)

	_, err = Validate(wideObject(t, MaxObjectCount+1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManyProperties)
}

func TestValidate_DeferredConstraints(t *testing.T) {
	tests := []struct {
		name   string
		schema *Schema
	}{
		{"minLength over maxLength", String(WithMinLength(10), WithMaxLength(2))},
		{"negative minLength", String(WithMinLength(-1))},
		{"minimum over maximum", Number(WithMinimum(5), WithMaximum(1))},
		{"zero multipleOf", Integer(WithMultipleOf(0))},
		{"minItems over maxItems", Array(String(), WithMinItems(3), WithMaxItems(1))},
		{"array without items", Array(nil)},
		{"required on a leaf", String(WithRequired("x"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.schema)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConstraint)
		})
	}
}

func TestValidate_MinMaxProperties(t *testing.T) {
	s, err := Object(nil, WithMinProperties(3), WithMaxProperties(1))
	require.NoError(t, err)
	_, err = Validate(s)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConstraint)
}

func TestValidate_SharedChildRejected(t *testing.T) {
	shared := String()
	s, err := Object([]Property{
		{Name: "a", Schema: shared},
		{Name: "b", Schema: shared},
	})
	require.NoError(t, err)
	_, err = Validate(s)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConstraint)

	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Path, "properties.b")
}

func TestValidate_NilSchema(t *testing.T) {
	_, err := Validate(nil)
	assert.ErrorIs(t, err, ErrInvalidConstraint)
}

func TestValidate_ErrorCarriesPath(t *testing.T) {
	bad, err := Object([]Property{
		{Name: "user", Schema: Array(String(WithMinLength(9), WithMaxLength(1)))},
	})
	require.NoError(t, err)
	_, err = Validate(bad)
	require.Error(t, err)
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "properties.user.items", se.Path)
}
