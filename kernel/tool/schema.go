package tool

import (
	"reflect"
	"strings"
)

// schemaForType reflects a JSON-schema fragment from a Go type. Struct json
// tags name the properties, omitempty marks them optional, and a description
// tag becomes the property description.
func schemaForType[T any]() map[string]any {
	var zero T
	return schemaForReflectType(reflect.TypeOf(zero))
}

func schemaForReflectType(t reflect.Type) map[string]any {
	if t == nil {
		return map[string]any{"type": "object"}
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.Struct:
		properties := map[string]any{}
		required := make([]string, 0, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name, optional, skip := jsonFieldInfo(field)
			if skip {
				continue
			}
			fieldSchema := schemaForReflectType(field.Type)
			if desc := strings.TrimSpace(field.Tag.Get("description")); desc != "" {
				fieldSchema["description"] = desc
			}
			properties[name] = fieldSchema
			if !optional {
				required = append(required, name)
			}
		}
		out := map[string]any{
			"type":       "object",
			"properties": properties,
		}
		if len(required) > 0 {
			out["required"] = required
		}
		return out
	case reflect.String:
		return map[string]any{"type": "string"}
	case reflect.Bool:
		return map[string]any{"type": "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]any{"type": "integer"}
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}
	case reflect.Slice, reflect.Array:
		return map[string]any{
			"type":  "array",
			"items": schemaForReflectType(t.Elem()),
		}
	case reflect.Map:
		return map[string]any{"type": "object"}
	default:
		return map[string]any{"type": "string"}
	}
}

// jsonFieldInfo resolves a struct field's wire name and optionality from its
// json tag.
func jsonFieldInfo(field reflect.StructField) (name string, optional, skip bool) {
	name = field.Name
	tag := field.Tag.Get("json")
	if tag == "" {
		return name, false, false
	}
	if tag == "-" {
		return "", false, true
	}
	base, opts, _ := strings.Cut(tag, ",")
	if base = strings.TrimSpace(base); base != "" {
		name = base
	}
	for _, opt := range strings.Split(opts, ",") {
		if strings.TrimSpace(opt) == "omitempty" {
			optional = true
			break
		}
	}
	return name, optional, skip
}
