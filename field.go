package argparser

import (
	"reflect"
	"strings"
	"unicode"
)

// fieldMeta is the declared (pre-classification) metadata of one struct
// field, read from its tags. The classifier combines it with the field
// type to produce the resolved argSpec.
type fieldMeta struct {
	name       string // Go field name
	flag       string // long name override, "-" skips the field
	short      string // single-character alias
	aliases    []string
	defaultVal *string
	constVal   *string
	usage      string
	nargs      string // "", "N", "+", "*", "?"
	dest       string
	required   bool
	counter    bool
	union      []string // ordered union candidates
	group      string
	groupExcl  bool
	groupReq   bool
	typeArgs   map[string]string
	positional bool // pos:"true" forces a positional slot
	extra      bool // extra:"true" marks the leftover-token sink
}

func parseFieldMeta(sf reflect.StructField) fieldMeta {
	m := fieldMeta{
		name:  sf.Name,
		flag:  sf.Tag.Get("flag"),
		short: sf.Tag.Get("short"),
		usage: sf.Tag.Get("usage"),
		nargs: sf.Tag.Get("nargs"),
		dest:  sf.Tag.Get("dest"),
	}
	if v, ok := sf.Tag.Lookup("default"); ok {
		m.defaultVal = &v
	}
	if v, ok := sf.Tag.Lookup("const"); ok {
		m.constVal = &v
	}
	if v := sf.Tag.Get("alias"); v != "" {
		m.aliases = splitList(v)
	}
	if v := sf.Tag.Get("union"); v != "" {
		m.union = splitList(v)
	}
	m.required = sf.Tag.Get("required") == "true"
	m.counter = sf.Tag.Get("counter") == "true"
	m.positional = sf.Tag.Get("pos") == "true"
	m.extra = sf.Tag.Get("extra") == "true"

	if v := sf.Tag.Get("group"); v != "" {
		parts := splitList(v)
		m.group = parts[0]
		for _, p := range parts[1:] {
			switch p {
			case "exclusive":
				m.groupExcl = true
			case "required":
				m.groupReq = true
			}
		}
	}

	if v := sf.Tag.Get("typeargs"); v != "" {
		m.typeArgs = make(map[string]string)
		for _, pair := range splitList(v) {
			key, val, found := strings.Cut(pair, "=")
			if !found {
				val = "true"
			}
			m.typeArgs[key] = val
		}
	}
	if m.dest == "" {
		m.dest = m.name
	}
	return m
}

// longName derives the invocation name of an optional field: explicit
// flag tag first, otherwise the kebab-cased Go field name.
func (m fieldMeta) longName() string {
	if m.flag != "" {
		return m.flag
	}
	return lowerKebab(m.name)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func lowerKebab(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if r == '_' {
			b.WriteByte('-')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
