package loopy

import "fmt"

// FieldKind is the primitive kind of a described record field.
type FieldKind int

const (
	FieldString FieldKind = iota
	FieldInteger
	FieldNumber
	FieldBoolean
)

// TypeDescriptor is a declarative description of a record type: field names,
// field kinds, nullability, and container-ness. FromType turns it into a
// Schema tree without reflection, which keeps the mapping explicit and
// portable across hosts that describe their types ahead of time.
type TypeDescriptor struct {
	Name        string
	Description string
	Fields      []FieldDescriptor
}

// FieldDescriptor describes one record field. Exactly one of Kind (with
// Object == nil) or Object applies; Enum further restricts a string field.
type FieldDescriptor struct {
	Name        string
	Description string
	Kind        FieldKind
	Object      *TypeDescriptor // set for a nested record field
	Enum        []string        // set to restrict a FieldString to literals
	Repeated    bool            // field is a sequence of the described element
	Nullable    bool            // nullable fields are not required
}

// FromType derives a Schema tree from a type descriptor. The mapping is
// deterministic and total over the supported field kinds: primitives map to
// leaf nodes, Repeated wraps the element in an array, nested records map to
// objects, and nullable fields are simply excluded from required rather than
// widened to a union with null. Unmappable fields fail with
// ErrUnsupportedType, an enum restriction on anything but a plain string
// field fails with ErrInvalidConstraint, and no partial tree is returned.
func FromType(td TypeDescriptor) (*Schema, error) {
	props := make([]Property, 0, len(td.Fields))
	required := make([]string, 0, len(td.Fields))
	for _, f := range td.Fields {
		if f.Name == "" {
			return nil, &SchemaError{
				Path:   td.Name,
				Reason: "field without a name",
				Err:    ErrUnsupportedType,
			}
		}
		elem, err := fieldElement(td.Name, f)
		if err != nil {
			return nil, err
		}
		if f.Repeated {
			elem = Array(elem)
			if f.Description != "" {
				WithDescription(f.Description)(elem)
			}
		}
		props = append(props, Property{Name: f.Name, Schema: elem})
		if !f.Nullable {
			required = append(required, f.Name)
		}
	}
	opts := []SchemaOption{WithRequired(required...)}
	if td.Description != "" {
		opts = append(opts, WithDescription(td.Description))
	}
	return Object(props, opts...)
}

func fieldElement(typeName string, f FieldDescriptor) (*Schema, error) {
	path := typeName + "." + f.Name
	if len(f.Enum) > 0 && (f.Object != nil || f.Kind != FieldString) {
		return nil, &SchemaError{
			Path:   path,
			Reason: "enum restriction requires a string field",
			Err:    ErrInvalidConstraint,
		}
	}
	if f.Object != nil {
		nested, err := FromType(*f.Object)
		if err != nil {
			return nil, err
		}
		if f.Description != "" && !f.Repeated {
			WithDescription(f.Description)(nested)
		}
		return nested, nil
	}
	var opts []SchemaOption
	if f.Description != "" && !f.Repeated {
		opts = append(opts, WithDescription(f.Description))
	}
	switch f.Kind {
	case FieldString:
		if len(f.Enum) > 0 {
			s, err := Enum(f.Enum, opts...)
			if err != nil {
				return nil, &SchemaError{Path: path, Reason: "invalid enum restriction", Err: err}
			}
			return s, nil
		}
		return String(opts...), nil
	case FieldInteger:
		return Integer(opts...), nil
	case FieldNumber:
		return Number(opts...), nil
	case FieldBoolean:
		return Boolean(opts...), nil
	default:
		return nil, &SchemaError{
			Path:   path,
			Reason: fmt.Sprintf("field kind %d is not mappable", f.Kind),
			Err:    ErrUnsupportedType,
		}
	}
}
