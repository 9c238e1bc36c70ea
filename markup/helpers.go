package markup

import (
	"strings"

	"github.com/aymerick/raymond"

	"github.com/itakecare/leazr-docgen/resolve"
)

// builtinHelpers are provided by the template engine itself.
var builtinHelpers = map[string]bool{
	"if": true, "unless": true, "each": true, "with": true,
	"lookup": true, "log": true, "else": true, "equal": true,
}

// sanitizeHelper is the helper every unescaped mustache is routed through.
const sanitizeHelper = "safeHTML"

// helpers returns the fixed helper set bound to a formatter:
//
//	{{formatCurrency amounts.total currency="USD"}}
//	{{formatDate offer.date pattern="dd MMMM yyyy"}}
//	{{formatNumber offer.duration_months decimals=0}}
//	{{upper client.name}} {{lower client.email}}
//	{{default client.phone "-"}}
//	{{#eq offer.status "signed"}}...{{else}}...{{/eq}}
//	{{equipmentTable equipment}}
//	{{safeHTML client.notes}}
func helpers(f *resolve.Formatter, sanitize func(string) string) map[string]interface{} {
	return map[string]interface{}{
		"formatCurrency": func(v interface{}, options *raymond.Options) string {
			s, _ := f.Currency(v, options.HashStr("currency"))
			return s
		},
		"formatDate": func(v interface{}, options *raymond.Options) string {
			s, _ := f.Date(v, options.HashStr("pattern"))
			return s
		},
		"formatNumber": func(v interface{}, options *raymond.Options) string {
			decimals := 0
			if d, ok := resolve.Float(options.HashProp("decimals")); ok {
				decimals = int(d)
			}
			s, _ := f.Number(v, decimals)
			return s
		},
		"upper": func(v interface{}) string {
			return strings.ToUpper(raymond.Str(v))
		},
		"lower": func(v interface{}) string {
			return strings.ToLower(raymond.Str(v))
		},
		"default": func(v, fallback interface{}) interface{} {
			if raymond.IsTrue(v) {
				return v
			}
			return fallback
		},
		"eq": func(a, b interface{}, options *raymond.Options) string {
			if raymond.Str(a) == raymond.Str(b) {
				return options.Fn()
			}
			return options.Inverse()
		},
		sanitizeHelper: func(v interface{}) raymond.SafeString {
			return raymond.SafeString(sanitize(raymond.Str(v)))
		},
		"equipmentTable": func(items interface{}) raymond.SafeString {
			return raymond.SafeString(sanitize(equipmentHTML(equipmentLines(items), f)))
		},
	}
}
