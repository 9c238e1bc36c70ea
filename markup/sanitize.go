package markup

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// FragmentKeys are the only value-map entries injected unescaped. A
// placeholder written {{logo}} for one of them is treated as {{{logo}}}.
var FragmentKeys = []string{"cover_image", "vision_image", "logo", "client_logos"}

func isFragmentKey(k string) bool {
	for _, f := range FragmentKeys {
		if f == k {
			return true
		}
	}
	return false
}

// NewPolicy returns the sanitizer applied to every unescaped fragment: block
// and text tags, tables, and images from http(s) or data URIs.
func NewPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "div", "span", "section", "blockquote", "hr",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"strong", "b", "em", "i", "u", "small",
		"ul", "ol", "li",
		"table", "thead", "tbody", "tfoot", "tr", "th", "td",
		"img",
	)
	p.AllowAttrs("class").Globally()
	p.AllowAttrs("colspan", "align").OnElements("td", "th")
	p.AllowAttrs("src", "alt", "width", "height").OnElements("img")
	p.AllowStyles("text-align", "color", "font-weight").Globally()
	p.AllowURLSchemes("http", "https")
	p.AllowDataURIImages()
	p.RequireParseableURLs(true)
	return p
}

// fragment builds the markup for an allow-listed key. Strings starting with
// "<" are taken as markup; other strings are image URLs. A list of URLs
// becomes a logo grid.
func fragment(key string, v any) string {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return ""
		}
		if strings.HasPrefix(s, "<") {
			return s
		}
		return imgTag(s, key)
	case []any:
		var sb strings.Builder
		sb.WriteString(`<div class="` + strings.ReplaceAll(key, "_", "-") + `">`)
		for _, e := range t {
			switch e := e.(type) {
			case string:
				sb.WriteString(imgTag(e, key))
			case map[string]any:
				if u, ok := e["url"].(string); ok {
					alt, _ := e["name"].(string)
					if alt == "" {
						alt = key
					}
					sb.WriteString(imgTag(u, alt))
				}
			}
		}
		sb.WriteString(`</div>`)
		return sb.String()
	case nil:
		return ""
	default:
		return html.EscapeString(fmt.Sprint(t))
	}
}

func imgTag(src, alt string) string {
	return `<img src="` + html.EscapeString(src) + `" alt="` + html.EscapeString(alt) + `">`
}
