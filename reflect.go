package loopy

import (
	"encoding/json"

	invopop "github.com/invopop/jsonschema"
)

// FromStruct derives a Schema tree from a Go struct type via reflection.
// Property order, descriptions (jsonschema struct tags), enums, string and
// numeric bounds survive the conversion. Required follows the reflector's
// rule: fields without ",omitempty" are required. When strict is true the
// result is the Strict() form (OpenAI Structured Outputs).
//
// Prefer FromType when the host already has a declarative type description;
// FromStruct is the convenience path for plain Go argument structs.
func FromStruct[T any](strict bool) (*Schema, error) {
	r := invopop.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	var v T
	root := r.Reflect(&v)
	s, err := fromReflected(root, "")
	if err != nil {
		return nil, err
	}
	if s.kind != KindObject {
		return nil, &SchemaError{Reason: "reflected type is not a struct", Err: ErrUnsupportedType}
	}
	if strict {
		s = s.Strict()
	}
	return s, nil
}

func fromReflected(js *invopop.Schema, path string) (*Schema, error) {
	if js == nil {
		return nil, &SchemaError{Path: path, Reason: "reflection produced no schema", Err: ErrUnsupportedType}
	}
	var opts []SchemaOption
	if js.Description != "" {
		opts = append(opts, WithDescription(js.Description))
	}
	switch js.Type {
	case "string":
		if len(js.Enum) > 0 {
			values := make([]string, 0, len(js.Enum))
			for _, e := range js.Enum {
				str, ok := e.(string)
				if !ok {
					return nil, &SchemaError{Path: path, Reason: "non-string enum literal", Err: ErrUnsupportedType}
				}
				values = append(values, str)
			}
			return Enum(values, opts...)
		}
		if js.Pattern != "" {
			opts = append(opts, WithPattern(js.Pattern))
		}
		if js.MinLength != nil {
			opts = append(opts, WithMinLength(int(*js.MinLength)))
		}
		if js.MaxLength != nil {
			opts = append(opts, WithMaxLength(int(*js.MaxLength)))
		}
		return String(opts...), nil
	case "integer", "number":
		if v, ok := parseBound(js.Minimum); ok {
			opts = append(opts, WithMinimum(v))
		}
		if v, ok := parseBound(js.Maximum); ok {
			opts = append(opts, WithMaximum(v))
		}
		if js.Type == "integer" {
			return Integer(opts...), nil
		}
		return Number(opts...), nil
	case "boolean":
		return Boolean(opts...), nil
	case "null":
		return Null(opts...), nil
	case "array":
		items, err := fromReflected(js.Items, joinPath(path, "items"))
		if err != nil {
			return nil, err
		}
		return Array(items, opts...), nil
	case "object":
		if js.Properties == nil || js.Properties.Len() == 0 {
			// Open-ended maps have no declared property set.
			return nil, &SchemaError{Path: path, Reason: "object without declared properties", Err: ErrUnsupportedType}
		}
		props := make([]Property, 0, js.Properties.Len())
		for pair := js.Properties.Oldest(); pair != nil; pair = pair.Next() {
			child, err := fromReflected(pair.Value, joinPath(path, "properties."+pair.Key))
			if err != nil {
				return nil, err
			}
			props = append(props, Property{Name: pair.Key, Schema: child})
		}
		if len(js.Required) > 0 {
			opts = append(opts, WithRequired(js.Required...))
		}
		if js.AdditionalProperties == invopop.FalseSchema {
			opts = append(opts, WithoutAdditionalProperties())
		}
		return Object(props, opts...)
	default:
		return nil, &SchemaError{
			Path:   path,
			Reason: "no mapping for reflected type " + quote(js.Type),
			Err:    ErrUnsupportedType,
		}
	}
}

func parseBound(n json.Number) (float64, bool) {
	if n == "" {
		return 0, false
	}
	v, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return v, true
}
