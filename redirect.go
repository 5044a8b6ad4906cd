package oauth

import (
	"net/url"
	"strings"
)

type param struct {
	key   string
	value string
	// bare marks a parameter written without "=", such as a flag.
	bare bool
}

// RedirectURI is an immutable redirect target. Query and fragment parameters
// keep their insertion order, including repeated keys from the parsed URI.
// Setting a key that is already present replaces its first occurrence in
// place and drops the others. The zero value is not usable, use
// ParseRedirectURI.
type RedirectURI struct {
	base     url.URL
	query    []param
	fragment []param
}

// ParseRedirectURI parses raw into a RedirectURI. Existing query and
// fragment parameters are preserved.
func ParseRedirectURI(raw string) (RedirectURI, error) {
	if raw == "" {
		return RedirectURI{}, NewInvalidArgumentError("Missing parameter: `redirectUri`")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return RedirectURI{}, WrapError(ErrInvalidArgument.Name, ErrInvalidArgument.Code, err)
	}

	r := RedirectURI{base: *u}
	r.query = parseParams(u.RawQuery)
	r.fragment = parseParams(u.EscapedFragment())
	r.base.RawQuery = ""
	r.base.ForceQuery = false
	r.base.Fragment = ""
	r.base.RawFragment = ""
	return r, nil
}

func parseParams(raw string) []param {
	if raw == "" {
		return nil
	}
	var out []param
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, hasValue := strings.Cut(pair, "=")
		if uk, err := url.QueryUnescape(k); err == nil {
			k = uk
		}
		if uv, err := url.QueryUnescape(v); err == nil {
			v = uv
		}
		out = append(out, param{key: k, value: v, bare: !hasValue})
	}
	return out
}

func setParam(params []param, key, value string) []param {
	out := make([]param, 0, len(params)+1)
	replaced := false
	for _, p := range params {
		if p.key != key {
			out = append(out, p)
			continue
		}
		if !replaced {
			out = append(out, param{key: key, value: value})
			replaced = true
		}
	}
	if !replaced {
		out = append(out, param{key: key, value: value})
	}
	return out
}

// IsZero reports whether r was never parsed.
func (r RedirectURI) IsZero() bool {
	return r.base == url.URL{} && r.query == nil && r.fragment == nil
}

// WithQuery returns a copy of r with the query parameter key set to value.
func (r RedirectURI) WithQuery(key, value string) RedirectURI {
	r.query = setParam(r.query, key, value)
	return r
}

// WithFragment returns a copy of r with the fragment parameter key set to
// value.
func (r RedirectURI) WithFragment(key, value string) RedirectURI {
	r.fragment = setParam(r.fragment, key, value)
	return r
}

// Query returns the value of the first query parameter named key.
func (r RedirectURI) Query(key string) (string, bool) {
	return lookupParam(r.query, key)
}

// Fragment returns the value of a fragment parameter.
func (r RedirectURI) Fragment(key string) (string, bool) {
	return lookupParam(r.fragment, key)
}

func lookupParam(params []param, key string) (string, bool) {
	for _, p := range params {
		if p.key == key {
			return p.value, true
		}
	}
	return "", false
}

// String serializes r. Keys and values are percent-encoded, spaces as %20.
func (r RedirectURI) String() string {
	var b strings.Builder
	b.WriteString(r.base.String())
	if len(r.query) > 0 {
		b.WriteByte('?')
		writeParams(&b, r.query)
	}
	if len(r.fragment) > 0 {
		b.WriteByte('#')
		writeParams(&b, r.fragment)
	}
	return b.String()
}

func writeParams(b *strings.Builder, params []param) {
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(escape(p.key))
		if p.bare {
			continue
		}
		b.WriteByte('=')
		b.WriteString(escape(p.value))
	}
}

func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
