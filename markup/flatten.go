package markup

import (
	"fmt"
	"html"
	"strings"

	"github.com/itakecare/leazr-docgen/resolve"
)

// Flatten turns a nested record into the value map markup templates are
// compiled against. Nested keys are joined with "_" (client.address.city
// becomes client_address_city); nested maps are also kept under their
// top-level key so dotted paths still work. Derived values are added:
//
//	equipment_count, equipment_total, equipment_total_formatted
//	equipment_html               grouped line-item table
//	<amount>_formatted           for every numeric leaf under amounts
//	company_stats_<k>_formatted  grouped integers for company.stats
//
// The record is not modified.
func Flatten(record map[string]any, f *resolve.Formatter) map[string]any {
	out := make(map[string]any, len(record)*2)
	for k, v := range record {
		out[k] = deepCopy(v)
		if m, ok := v.(map[string]any); ok {
			flattenInto(out, k, m)
		}
	}
	derive(out, record, f)
	return out
}

func flattenInto(out map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		key := prefix + "_" + k
		if child, ok := v.(map[string]any); ok {
			flattenInto(out, key, child)
			continue
		}
		out[key] = deepCopy(v)
	}
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		c := make(map[string]any, len(t))
		for k, e := range t {
			c[k] = deepCopy(e)
		}
		return c
	case []any:
		c := make([]any, len(t))
		for i, e := range t {
			c[i] = deepCopy(e)
		}
		return c
	default:
		return v
	}
}

func derive(out, record map[string]any, f *resolve.Formatter) {
	if amounts, ok := record["amounts"].(map[string]any); ok {
		formatAmounts(out, "amounts", amounts, f)
	}

	if company, ok := record["company"].(map[string]any); ok {
		if stats, ok := company["stats"].(map[string]any); ok {
			for k, v := range stats {
				if _, ok := resolve.Float(v); ok {
					out["company_stats_"+k+"_formatted"], _ = f.Number(v, 0)
				}
			}
		}
	}

	items := equipmentLines(record["equipment"])
	total := 0.0
	for _, it := range items {
		total += it.monthly * it.quantity
	}
	out["equipment_count"] = len(items)
	out["equipment_total"] = total
	out["equipment_total_formatted"], _ = f.Currency(total, "")
	out["equipment_html"] = equipmentHTML(items, f)
}

func formatAmounts(out map[string]any, prefix string, m map[string]any, f *resolve.Formatter) {
	for k, v := range m {
		key := prefix + "_" + k
		if child, ok := v.(map[string]any); ok {
			formatAmounts(out, key, child, f)
			continue
		}
		if _, ok := resolve.Float(v); ok {
			out[key+"_formatted"], _ = f.Currency(v, "")
		}
	}
}

type equipmentLine struct {
	title    string
	category string
	quantity float64
	monthly  float64
}

func equipmentLines(v any) []equipmentLine {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	lines := make([]equipmentLine, 0, len(list))
	for _, e := range list {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		l := equipmentLine{quantity: 1}
		l.title = stringValue(m["title"])
		l.category = stringValue(m["category"])
		if q, ok := resolve.Float(m["quantity"]); ok {
			l.quantity = q
		}
		if p, ok := resolve.Float(m["monthly_payment"]); ok {
			l.monthly = p
		}
		lines = append(lines, l)
	}
	return lines
}

func stringValue(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// equipmentHTML renders the line items as a table grouped by category, in
// order of first appearance, with a total row. Cell text is escaped.
func equipmentHTML(items []equipmentLine, f *resolve.Formatter) string {
	if len(items) == 0 {
		return ""
	}

	var order []string
	groups := make(map[string][]equipmentLine)
	for _, it := range items {
		if _, seen := groups[it.category]; !seen {
			order = append(order, it.category)
		}
		groups[it.category] = append(groups[it.category], it)
	}
	grouped := len(order) > 1 || order[0] != ""

	var sb strings.Builder
	sb.WriteString(`<table class="equipment"><thead><tr><th>Équipement</th><th>Qté</th><th>Mensualité</th></tr></thead><tbody>`)
	total := 0.0
	for _, cat := range order {
		if grouped {
			name := cat
			if name == "" {
				name = "Autres"
			}
			fmt.Fprintf(&sb, `<tr><th colspan="3">%s</th></tr>`, html.EscapeString(name))
		}
		for _, it := range groups[cat] {
			qty, _ := f.Number(it.quantity, 0)
			monthly, _ := f.Currency(it.monthly*it.quantity, "")
			fmt.Fprintf(&sb, `<tr><td>%s</td><td align="center">%s</td><td align="right">%s</td></tr>`,
				html.EscapeString(it.title), html.EscapeString(qty), html.EscapeString(monthly))
			total += it.monthly * it.quantity
		}
	}
	sum, _ := f.Currency(total, "")
	fmt.Fprintf(&sb, `<tr><td colspan="2"><strong>Total</strong></td><td align="right"><strong>%s</strong></td></tr>`,
		html.EscapeString(sum))
	sb.WriteString(`</tbody></table>`)
	return sb.String()
}
