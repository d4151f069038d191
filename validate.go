package loopy

import "fmt"

// Host ceilings observed from OpenAI-compatible Structured Outputs backends.
// They are enforced at submission time (Validate), not at construction time,
// so intermediate trees may be built incrementally.
const (
	MaxObjectDepth = 5
	MaxObjectCount = 100
)

// Validate walks the tree and checks the invariants that cannot be enforced
// during incremental construction: object nesting depth (<= MaxObjectDepth),
// total object node count (<= MaxObjectCount), exclusive child ownership,
// and constraint combinations deferred by the leaf constructors. It returns
// the same tree unchanged so calls can be chained as a checkpoint.
func Validate(s *Schema) (*Schema, error) {
	if s == nil {
		return nil, &SchemaError{Reason: "nil schema", Err: ErrInvalidConstraint}
	}
	v := &treeValidator{seen: make(map[*Schema]struct{})}
	if err := v.walk(s, "", 0); err != nil {
		return nil, err
	}
	if v.objects > MaxObjectCount {
		return nil, &SchemaError{
			Reason: fmt.Sprintf("%d object nodes exceed the limit of %d", v.objects, MaxObjectCount),
			Err:    ErrTooManyProperties,
		}
	}
	return s, nil
}

type treeValidator struct {
	seen    map[*Schema]struct{}
	objects int
}

// walk visits node at the given object nesting depth. depth counts enclosing
// object nodes, so a root object is at depth 1 once entered.
func (v *treeValidator) walk(node *Schema, path string, depth int) error {
	if node == nil {
		return &SchemaError{Path: path, Reason: "missing child schema", Err: ErrInvalidConstraint}
	}
	if _, dup := v.seen[node]; dup {
		return &SchemaError{Path: path, Reason: "node is attached to more than one parent", Err: ErrInvalidConstraint}
	}
	v.seen[node] = struct{}{}

	if err := v.checkConstraints(node, path); err != nil {
		return err
	}

	switch node.kind {
	case KindArray:
		if node.items == nil {
			return &SchemaError{Path: path, Reason: "array requires an items schema", Err: ErrInvalidConstraint}
		}
		return v.walk(node.items, joinPath(path, "items"), depth)
	case KindObject:
		v.objects++
		depth++
		if depth > MaxObjectDepth {
			return &SchemaError{
				Path:   path,
				Reason: fmt.Sprintf("object nesting depth %d exceeds the limit of %d", depth, MaxObjectDepth),
				Err:    ErrTooDeeplyNested,
			}
		}
		if node.properties != nil {
			for pair := node.properties.Oldest(); pair != nil; pair = pair.Next() {
				if err := v.walk(pair.Value, joinPath(path, "properties."+pair.Key), depth); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (v *treeValidator) checkConstraints(node *Schema, path string) error {
	fail := func(reason string) error {
		return &SchemaError{Path: path, Reason: reason, Err: ErrInvalidConstraint}
	}
	if node.minLength != nil && node.maxLength != nil && *node.minLength > *node.maxLength {
		return fail("minLength exceeds maxLength")
	}
	if node.minLength != nil && *node.minLength < 0 {
		return fail("minLength must not be negative")
	}
	if node.minimum != nil && node.maximum != nil && *node.minimum > *node.maximum {
		return fail("minimum exceeds maximum")
	}
	if node.multipleOf != nil && *node.multipleOf <= 0 {
		return fail("multipleOf must be positive")
	}
	if node.minItems != nil && node.maxItems != nil && *node.minItems > *node.maxItems {
		return fail("minItems exceeds maxItems")
	}
	if node.minProperties != nil && node.maxProperties != nil && *node.minProperties > *node.maxProperties {
		return fail("minProperties exceeds maxProperties")
	}
	if node.kind != KindObject && len(node.required) > 0 {
		return fail("required is only valid on object schemas")
	}
	return nil
}

func joinPath(path, elem string) string {
	if path == "" {
		return elem
	}
	return path + "." + elem
}
