package loopy

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind identifies the JSON Schema variant of a Schema node.
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindNumber
	KindBoolean
	KindNull
	KindEnum
	KindArray
	KindObject
)

// String returns the JSON Schema "type" keyword for the kind.
// KindEnum serializes as a string type restricted by "enum".
func (k Kind) String() string {
	switch k {
	case KindString, KindEnum:
		return "string"
	case KindInteger:
		return "integer"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindNull:
		return "null"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Schema is one node of a JSON Schema tree: a tagged union with one case per
// schema kind. Trees are built with the constructors (String, Integer, Number,
// Boolean, Null, Enum, Array, Object), checked with Validate, and serialized
// with MarshalJSON into the wire vocabulary LLM providers expect.
//
// Each child node belongs to exactly one parent; do not attach the same
// *Schema to two trees. Validate rejects shared and cyclic nodes.
// Once validated and attached to a request a tree must be treated as
// immutable; it is then safe to share across concurrent requests.
type Schema struct {
	kind        Kind
	description string

	// string constraints
	minLength *int
	maxLength *int
	pattern   string

	// integer/number constraints
	minimum    *float64
	maximum    *float64
	multipleOf *float64

	// enum literals
	values []string

	// array
	items       *Schema
	minItems    *int
	maxItems    *int
	uniqueItems bool

	// object
	properties    *orderedmap.OrderedMap[string, *Schema]
	required      []string
	noExtraProps  bool // additionalProperties: false
	minProperties *int
	maxProperties *int
}

// Property pairs a property name with its schema for Object construction.
// Object preserves the order properties are given in.
type Property struct {
	Name   string
	Schema *Schema
}

// SchemaOption configures a Schema node (description, per-kind constraints).
// Options that do not apply to the node's kind are ignored by serialization;
// contradictory combinations are flagged by Validate.
type SchemaOption func(*Schema)

// WithDescription sets the node description.
func WithDescription(text string) SchemaOption {
	return func(s *Schema) { s.description = text }
}

// WithMinLength sets the minimum string length.
func WithMinLength(n int) SchemaOption {
	return func(s *Schema) { s.minLength = &n }
}

// WithMaxLength sets the maximum string length.
func WithMaxLength(n int) SchemaOption {
	return func(s *Schema) { s.maxLength = &n }
}

// WithPattern sets a regular expression the string must match.
func WithPattern(pattern string) SchemaOption {
	return func(s *Schema) { s.pattern = pattern }
}

// WithMinimum sets the inclusive lower bound for a numeric node.
func WithMinimum(v float64) SchemaOption {
	return func(s *Schema) { s.minimum = &v }
}

// WithMaximum sets the inclusive upper bound for a numeric node.
func WithMaximum(v float64) SchemaOption {
	return func(s *Schema) { s.maximum = &v }
}

// WithMultipleOf constrains a numeric node to multiples of v.
func WithMultipleOf(v float64) SchemaOption {
	return func(s *Schema) { s.multipleOf = &v }
}

// WithMinItems sets the minimum array length.
func WithMinItems(n int) SchemaOption {
	return func(s *Schema) { s.minItems = &n }
}

// WithMaxItems sets the maximum array length.
func WithMaxItems(n int) SchemaOption {
	return func(s *Schema) { s.maxItems = &n }
}

// WithUniqueItems requires array elements to be distinct.
func WithUniqueItems() SchemaOption {
	return func(s *Schema) { s.uniqueItems = true }
}

// WithRequired marks object property names as required.
// Object fails with ErrInvalidRequired if any name has no matching property.
func WithRequired(names ...string) SchemaOption {
	return func(s *Schema) { s.required = append(s.required, names...) }
}

// WithoutAdditionalProperties sets additionalProperties: false on an object.
// The default (additional properties allowed) is omitted from the wire form.
func WithoutAdditionalProperties() SchemaOption {
	return func(s *Schema) { s.noExtraProps = true }
}

// WithMinProperties sets the minimum number of object properties.
func WithMinProperties(n int) SchemaOption {
	return func(s *Schema) { s.minProperties = &n }
}

// WithMaxProperties sets the maximum number of object properties.
func WithMaxProperties(n int) SchemaOption {
	return func(s *Schema) { s.maxProperties = &n }
}

func newLeaf(kind Kind, opts []SchemaOption) *Schema {
	s := &Schema{kind: kind}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// String returns a string schema node.
// Malformed constraint combinations (e.g. minLength > maxLength) are
// reported by Validate, not here.
func String(opts ...SchemaOption) *Schema { return newLeaf(KindString, opts) }

// Integer returns an integer schema node.
func Integer(opts ...SchemaOption) *Schema { return newLeaf(KindInteger, opts) }

// Number returns a number schema node.
func Number(opts ...SchemaOption) *Schema { return newLeaf(KindNumber, opts) }

// Boolean returns a boolean schema node.
func Boolean(opts ...SchemaOption) *Schema { return newLeaf(KindBoolean, opts) }

// Null returns a null schema node.
func Null(opts ...SchemaOption) *Schema { return newLeaf(KindNull, opts) }

// Enum returns a string schema node restricted to the given literals.
// The literal order is preserved on the wire. Fails with ErrEmptyEnum when
// values is empty and with ErrInvalidConstraint on duplicate literals.
func Enum(values []string, opts ...SchemaOption) (*Schema, error) {
	if len(values) == 0 {
		return nil, &SchemaError{Reason: "enum requires at least one value", Err: ErrEmptyEnum}
	}
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			return nil, &SchemaError{Reason: "duplicate enum value " + quote(v), Err: ErrInvalidConstraint}
		}
		seen[v] = struct{}{}
	}
	s := newLeaf(KindEnum, opts)
	s.values = append([]string(nil), values...)
	return s, nil
}

// Array returns an array schema node owning items as its element schema.
// A nil items schema is rejected by Validate.
func Array(items *Schema, opts ...SchemaOption) *Schema {
	s := newLeaf(KindArray, opts)
	s.items = items
	return s
}

// Object returns an object schema node owning all property schemas.
// Property order is preserved for stable serialization. Fails with
// ErrInvalidRequired if a WithRequired name has no matching property;
// on failure no node is produced and the given children are untouched.
func Object(props []Property, opts ...SchemaOption) (*Schema, error) {
	s := newLeaf(KindObject, opts)
	pm := orderedmap.New[string, *Schema]()
	for _, p := range props {
		if _, exists := pm.Get(p.Name); exists {
			return nil, &SchemaError{Reason: "duplicate property " + quote(p.Name), Err: ErrInvalidConstraint}
		}
		pm.Set(p.Name, p.Schema)
	}
	for _, name := range s.required {
		if _, ok := pm.Get(name); !ok {
			return nil, &SchemaError{
				Reason: "required property " + quote(name) + " is not declared",
				Err:    ErrInvalidRequired,
			}
		}
	}
	s.properties = pm
	return s, nil
}

// Kind returns the node's schema kind.
func (s *Schema) Kind() Kind { return s.kind }

// Description returns the node description, if any.
func (s *Schema) Description() string { return s.description }

// Items returns the element schema of an array node, or nil.
func (s *Schema) Items() *Schema { return s.items }

// EnumValues returns a copy of the enum literals of an enum node.
func (s *Schema) EnumValues() []string { return append([]string(nil), s.values...) }

// PropertyNames returns the object property names in declaration order.
func (s *Schema) PropertyNames() []string {
	if s.properties == nil {
		return nil
	}
	names := make([]string, 0, s.properties.Len())
	for pair := s.properties.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Property returns the schema of a named object property.
func (s *Schema) Property(name string) (*Schema, bool) {
	if s.properties == nil {
		return nil, false
	}
	return s.properties.Get(name)
}

// Required returns a copy of the required property names of an object node.
func (s *Schema) Required() []string { return append([]string(nil), s.required...) }

// Strict returns a deep copy of the tree with every object set to
// additionalProperties: false and all of its properties required, which is
// what OpenAI Structured Outputs expects. The receiver is not modified.
func (s *Schema) Strict() *Schema {
	if s == nil {
		return nil
	}
	c := s.clone()
	c.strictInPlace()
	return c
}

func (s *Schema) clone() *Schema {
	c := &Schema{
		kind:          s.kind,
		description:   s.description,
		pattern:       s.pattern,
		uniqueItems:   s.uniqueItems,
		noExtraProps:  s.noExtraProps,
		values:        append([]string(nil), s.values...),
		required:      append([]string(nil), s.required...),
		minLength:     cloneIntPtr(s.minLength),
		maxLength:     cloneIntPtr(s.maxLength),
		minimum:       cloneFloatPtr(s.minimum),
		maximum:       cloneFloatPtr(s.maximum),
		multipleOf:    cloneFloatPtr(s.multipleOf),
		minItems:      cloneIntPtr(s.minItems),
		maxItems:      cloneIntPtr(s.maxItems),
		minProperties: cloneIntPtr(s.minProperties),
		maxProperties: cloneIntPtr(s.maxProperties),
	}
	if s.items != nil {
		c.items = s.items.clone()
	}
	if s.properties != nil {
		pm := orderedmap.New[string, *Schema]()
		for pair := s.properties.Oldest(); pair != nil; pair = pair.Next() {
			pm.Set(pair.Key, pair.Value.clone())
		}
		c.properties = pm
	}
	return c
}

func (s *Schema) strictInPlace() {
	if s.kind == KindObject {
		s.noExtraProps = true
		s.required = s.PropertyNames()
	}
	if s.items != nil {
		s.items.strictInPlace()
	}
	if s.properties != nil {
		for pair := s.properties.Oldest(); pair != nil; pair = pair.Next() {
			pair.Value.strictInPlace()
		}
	}
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloatPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// schemaWire is the serialized JSON Schema form. Unset fields are omitted to
// keep the payload small; additionalProperties is emitted only when false.
type schemaWire struct {
	Type                 string                                  `json:"type"`
	Description          string                                  `json:"description,omitempty"`
	Enum                 []string                                `json:"enum,omitempty"`
	MinLength            *int                                    `json:"minLength,omitempty"`
	MaxLength            *int                                    `json:"maxLength,omitempty"`
	Pattern              string                                  `json:"pattern,omitempty"`
	Minimum              *float64                                `json:"minimum,omitempty"`
	Maximum              *float64                                `json:"maximum,omitempty"`
	MultipleOf           *float64                                `json:"multipleOf,omitempty"`
	Items                *Schema                                 `json:"items,omitempty"`
	MinItems             *int                                    `json:"minItems,omitempty"`
	MaxItems             *int                                    `json:"maxItems,omitempty"`
	UniqueItems          bool                                    `json:"uniqueItems,omitempty"`
	Properties           *orderedmap.OrderedMap[string, *Schema] `json:"properties,omitempty"`
	Required             []string                                `json:"required,omitempty"`
	AdditionalProperties *bool                                   `json:"additionalProperties,omitempty"`
	MinProperties        *int                                    `json:"minProperties,omitempty"`
	MaxProperties        *int                                    `json:"maxProperties,omitempty"`
}

// MarshalJSON serializes the node into standard JSON Schema vocabulary.
// Object property order follows declaration order.
func (s *Schema) MarshalJSON() ([]byte, error) {
	w := schemaWire{
		Type:        s.kind.String(),
		Description: s.description,
		Enum:        s.values,
		MinLength:   s.minLength,
		MaxLength:   s.maxLength,
		Pattern:     s.pattern,
		Minimum:     s.minimum,
		Maximum:     s.maximum,
		MultipleOf:  s.multipleOf,
		Items:       s.items,
		MinItems:    s.minItems,
		MaxItems:    s.maxItems,
		UniqueItems: s.uniqueItems,
	}
	if s.kind == KindObject {
		w.Required = s.required
		if s.properties != nil && s.properties.Len() > 0 {
			w.Properties = s.properties
		}
		if s.noExtraProps {
			f := false
			w.AdditionalProperties = &f
		}
		w.MinProperties = s.minProperties
		w.MaxProperties = s.maxProperties
	}
	return json.Marshal(w)
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
