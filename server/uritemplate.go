package server

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/mcpforge/mcp-server/protocol"
)

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// uriTemplate is a parsed template: literal text interleaved with
// {identifier} placeholders. Each placeholder matches one path segment.
type uriTemplate struct {
	raw      string
	literals []string // len(literals) == len(names)+1
	names    []string
	re       *regexp.Regexp
}

func parseURITemplate(raw string) (*uriTemplate, error) {
	if raw == "" {
		return nil, protocol.NewInvalidParams("URI template must be a non-empty string")
	}

	t := &uriTemplate{raw: raw}
	seen := make(map[string]bool)
	var lit strings.Builder
	rest := raw

	for rest != "" {
		open := strings.IndexAny(rest, "{}")
		if open < 0 {
			lit.WriteString(rest)
			break
		}
		if rest[open] == '}' {
			return nil, protocol.InvalidParamsf("invalid URI template %q: unmatched '}'", raw)
		}
		lit.WriteString(rest[:open])
		rest = rest[open+1:]

		closing := strings.IndexAny(rest, "{}")
		if closing < 0 || rest[closing] == '{' {
			return nil, protocol.InvalidParamsf("invalid URI template %q: unterminated '{'", raw)
		}
		name := rest[:closing]
		if !identifierPattern.MatchString(name) {
			return nil, protocol.InvalidParamsf("invalid URI template %q: %q is not a valid parameter name", raw, name)
		}
		if seen[name] {
			return nil, protocol.InvalidParamsf("invalid URI template %q: duplicate parameter %q", raw, name)
		}
		seen[name] = true

		t.literals = append(t.literals, lit.String())
		t.names = append(t.names, name)
		lit.Reset()
		rest = rest[closing+1:]
	}
	t.literals = append(t.literals, lit.String())

	var pattern strings.Builder
	pattern.WriteString("^")
	for i, l := range t.literals {
		pattern.WriteString(regexp.QuoteMeta(l))
		if i < len(t.names) {
			pattern.WriteString(`([^/]+)`)
		}
	}
	pattern.WriteString("$")
	t.re = regexp.MustCompile(pattern.String())
	return t, nil
}

func (t *uriTemplate) match(uri string) (map[string]string, bool) {
	m := t.re.FindStringSubmatch(uri)
	if m == nil {
		return nil, false
	}
	params := make(map[string]string, len(t.names))
	for i, name := range t.names {
		v, err := url.PathUnescape(m[i+1])
		if err != nil {
			v = m[i+1]
		}
		params[name] = v
	}
	return params, true
}

func (t *uriTemplate) populate(params map[string]string) (string, error) {
	var b strings.Builder
	for i, l := range t.literals {
		b.WriteString(l)
		if i == len(t.names) {
			break
		}
		v, ok := params[t.names[i]]
		if !ok {
			return "", protocol.InvalidParamsf("missing parameter %q for URI template %q", t.names[i], t.raw)
		}
		b.WriteString(url.PathEscape(v))
	}
	return b.String(), nil
}

// IsValidURITemplate reports whether every placeholder in template is a
// well-formed, unique {identifier}. A template without placeholders is a
// valid literal URI. Unbalanced or nested braces are rejected.
func IsValidURITemplate(template string) bool {
	_, err := parseURITemplate(template)
	return err == nil
}

// TemplateParams returns the placeholder names of template in declaration
// order, or nil when the template is invalid.
func TemplateParams(template string) []string {
	t, err := parseURITemplate(template)
	if err != nil {
		return nil
	}
	return append([]string(nil), t.names...)
}

// ExtractTemplateParams matches uri against template and returns the
// percent-decoded value of every placeholder.
func ExtractTemplateParams(template, uri string) (map[string]string, error) {
	t, err := parseURITemplate(template)
	if err != nil {
		return nil, err
	}
	params, ok := t.match(uri)
	if !ok {
		return nil, protocol.InvalidParamsf("URI %q does not match template %q", uri, template)
	}
	return params, nil
}

// PopulateURITemplate substitutes percent-encoded params into template.
// It fails naming the first placeholder without a value.
func PopulateURITemplate(template string, params map[string]string) (string, error) {
	t, err := parseURITemplate(template)
	if err != nil {
		return "", err
	}
	return t.populate(params)
}
