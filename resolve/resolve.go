// Package resolve maps a template field and a rendering record to the string
// drawn on the page, or decides the field is hidden.
package resolve

import (
	"fmt"
	"strings"

	"github.com/itakecare/leazr-docgen/model"
)

// Resolved pairs a field with its display value. It is produced per
// generation call and never persisted.
type Resolved struct {
	Field  model.Field
	Hidden bool
	Value  string
}

// Resolver turns fields into display values. The zero value is not usable;
// use New.
type Resolver struct {
	format  *Formatter
	preview bool
}

// New returns a resolver formatting with f. In preview mode, text fields
// without a value show their label in brackets instead of being hidden.
func New(f *Formatter, preview bool) *Resolver {
	return &Resolver{format: f, preview: preview}
}

// Formatter returns the formatter used by the resolver.
func (r *Resolver) Formatter() *Formatter {
	return r.format
}

// Resolve computes the display value of field against record. It never
// fails: formatting problems fall back to the raw value.
func (r *Resolver) Resolve(field model.Field, record map[string]any) Resolved {
	out := Resolved{Field: field}
	if !field.IsVisible {
		out.Hidden = true
		return out
	}

	raw, found := Lookup(record, field.DataPath)
	if field.Type == model.FieldTable {
		out.Value = tableSummary(raw, found)
		return out
	}

	if !found || isEmpty(raw) {
		if r.preview && field.Type == model.FieldText {
			out.Value = placeholder(field)
			return out
		}
		out.Hidden = true
		return out
	}

	out.Value = r.formatValue(field, raw)
	return out
}

// ResolveAll resolves fields in stored order.
func (r *Resolver) ResolveAll(fields []model.Field, record map[string]any) []Resolved {
	out := make([]Resolved, len(fields))
	for i, f := range fields {
		out[i] = r.Resolve(f, record)
	}
	return out
}

func (r *Resolver) formatValue(field model.Field, raw any) string {
	var format model.Format
	if field.Format != nil {
		format = *field.Format
	}

	switch field.Type {
	case model.FieldCurrency:
		s, _ := r.format.Currency(raw, format.Currency)
		return s
	case model.FieldDate:
		s, _ := r.format.Date(raw, format.DatePattern)
		return s
	case model.FieldNumber:
		decimals := 0
		if format.NumberDecimals != nil {
			decimals = *format.NumberDecimals
		}
		s, _ := r.format.Number(raw, decimals)
		return s
	default:
		return textValue(raw)
	}
}

func placeholder(field model.Field) string {
	label := field.Label
	if label == "" {
		label = field.DataPath
	}
	return "[" + label + "]"
}

func tableSummary(raw any, found bool) string {
	n := 0
	if found {
		if l, ok := collectionLen(raw); ok {
			n = l
		} else if !isEmpty(raw) {
			n = 1
		}
	}
	if n == 1 {
		return "1 item"
	}
	return fmt.Sprintf("%d items", n)
}

func textValue(raw any) string {
	switch v := raw.(type) {
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, rawString(item))
		}
		return strings.Join(parts, ", ")
	}
	return rawString(raw)
}
