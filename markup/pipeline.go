// Package markup compiles HTML templates against a flattened record and
// hands the result to a converter that produces the PDF.
package markup

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/aymerick/raymond"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	docgen "github.com/itakecare/leazr-docgen"
	"github.com/itakecare/leazr-docgen/logger"
	"github.com/itakecare/leazr-docgen/resolve"
)

// Converter turns compiled markup into document bytes.
type Converter interface {
	Convert(ctx context.Context, html string, record map[string]any) ([]byte, error)
}

var (
	mustacheRe   = regexp.MustCompile(`\{\{\{?([^{}]*)\}?\}\}`)
	subexprRe    = regexp.MustCompile(`\(\s*([A-Za-z_][\w-]*)\s`)
	unescapedRe  = regexp.MustCompile(`\{\{(~?)(?:\{([^{}]*)\}|&([^{}~]*))(~?)\}\}`)
	rawOutputRe  = regexp.MustCompile(`\{\{~?[{&]`)
	promotionRe  = regexp.MustCompile(`(^|[^{])\{\{\s*(` + strings.Join(FragmentKeys, "|") + `)\s*\}\}`)
	helperNameRe = regexp.MustCompile(`^[A-Za-z_][\w-]*$`)
)

// Pipeline compiles markup templates. It is safe for concurrent use.
type Pipeline struct {
	format *resolve.Formatter
	conv   Converter
	policy *bluemonday.Policy
	logger *zap.Logger
}

// NewPipeline returns a pipeline formatting values with f and converting
// with conv.
func NewPipeline(f *resolve.Formatter, conv Converter, log *zap.Logger) *Pipeline {
	return &Pipeline{
		format: f,
		conv:   conv,
		policy: NewPolicy(),
		logger: logger.OrNop(log).Named("markup"),
	}
}

// Sanitize filters an HTML fragment through the fragment policy.
func (p *Pipeline) Sanitize(fragment string) string {
	return p.policy.Sanitize(fragment)
}

// Render compiles source against record and converts the result. Nothing is
// returned when compilation fails.
func (p *Pipeline) Render(ctx context.Context, source string, record map[string]any) ([]byte, error) {
	compiled, err := p.Compile(source, record)
	if err != nil {
		return nil, err
	}
	if p.conv == nil {
		return nil, fmt.Errorf("markup: no converter configured")
	}
	out, err := p.conv.Convert(ctx, compiled, record)
	if err != nil {
		return nil, fmt.Errorf("markup: convert: %w", err)
	}
	return out, nil
}

// Compile expands source against the flattened record. Unescaped output is
// always sanitized. Syntax errors, unknown helpers and execution failures
// wrap ErrMarkupCompilation.
func (p *Pipeline) Compile(source string, record map[string]any) (out string, err error) {
	helpers := helpers(p.format, p.Sanitize)
	if name := unknownHelper(source, helpers); name != "" {
		return "", fmt.Errorf("%w: unknown helper %q", docgen.ErrMarkupCompilation, name)
	}

	source, err = guardUnescaped(promote(source))
	if err != nil {
		return "", err
	}
	tpl, err := raymond.Parse(source)
	if err != nil {
		return "", fmt.Errorf("%w: %v", docgen.ErrMarkupCompilation, err)
	}
	tpl.RegisterHelpers(helpers)

	values := p.values(record)

	defer func() {
		if r := recover(); r != nil {
			out, err = "", fmt.Errorf("%w: %v", docgen.ErrMarkupCompilation, r)
		}
	}()
	out, err = tpl.Exec(values)
	if err != nil {
		return "", fmt.Errorf("%w: %v", docgen.ErrMarkupCompilation, err)
	}
	p.logger.Debug("markup compiled", zap.Int("bytes", len(out)))
	return out, nil
}

// values builds the template context: the flattened record with the
// allow-listed keys turned into sanitized fragments.
func (p *Pipeline) values(record map[string]any) map[string]any {
	values := Flatten(record, p.format)
	for _, key := range FragmentKeys {
		if v, ok := values[key]; ok {
			values[key] = raymond.SafeString(p.Sanitize(fragment(key, v)))
		}
	}
	if h, ok := values["equipment_html"].(string); ok {
		values["equipment_html"] = raymond.SafeString(p.Sanitize(h))
	}
	return values
}

// guardUnescaped rewrites every {{{expr}}} and {{& expr}} into a call to the
// sanitizing helper, whatever context or helper produces the value. Forms
// it cannot rewrite, such as raw blocks, are rejected.
func guardUnescaped(source string) (string, error) {
	out := unescapedRe.ReplaceAllStringFunc(source, func(m string) string {
		sub := unescapedRe.FindStringSubmatch(m)
		expr := strings.TrimSpace(sub[2] + sub[3])
		if expr == "" {
			return m
		}
		if !strings.HasPrefix(expr, "(") && strings.ContainsAny(expr, " \t\r\n") {
			expr = "(" + expr + ")"
		}
		return "{{" + sub[1] + sanitizeHelper + " " + expr + sub[4] + "}}"
	})
	if loc := rawOutputRe.FindStringIndex(out); loc != nil {
		return "", fmt.Errorf("%w: unsupported unescaped output at offset %d", docgen.ErrMarkupCompilation, loc[0])
	}
	return out, nil
}

// promote rewrites {{key}} to {{{key}}} for the allow-listed fragment keys.
// Adjacent placeholders share a boundary character, so the rewrite repeats
// until nothing changes.
func promote(source string) string {
	for {
		next := promotionRe.ReplaceAllString(source, "${1}{{{${2}}}}")
		if next == source {
			return next
		}
		source = next
	}
}

// unknownHelper returns the first helper name called with arguments that is
// neither built in nor registered.
func unknownHelper(source string, registered map[string]interface{}) string {
	known := func(name string) bool {
		_, ok := registered[name]
		return ok || builtinHelpers[name]
	}
	for _, m := range mustacheRe.FindAllStringSubmatch(source, -1) {
		body := strings.TrimSpace(m[1])
		if body == "" {
			continue
		}
		switch body[0] {
		case '/', '!', '>':
			continue
		case '#', '^', '&':
			body = strings.TrimSpace(body[1:])
		}

		head, rest, hasArgs := strings.Cut(body, " ")
		if hasArgs && strings.TrimSpace(rest) != "" && helperNameRe.MatchString(head) && !known(head) {
			return head
		}
		for _, s := range subexprRe.FindAllStringSubmatch(rest, -1) {
			if !known(s[1]) {
				return s[1]
			}
		}
	}
	return ""
}
