// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vocab

import "fmt"

// ValueKind says how a raw field value becomes triple objects. It is decided
// once per field by the mapper; the generator switches on it.
type ValueKind int

const (
	// KindAuto classifies by content: links, then URLs, then text.
	KindAuto ValueKind = iota
	// KindLiteral is a plain or datatyped literal.
	KindLiteral
	// KindLangLiteral is a literal tagged with the content language.
	KindLangLiteral
	// KindInternalLink resolves wiki links to resource IRIs.
	KindInternalLink
	// KindExternalLink turns URLs into IRIs.
	KindExternalLink
	// KindList splits the value and classifies each item by ItemKind.
	KindList
)

var kindNames = map[ValueKind]string{
	KindAuto:         "auto",
	KindLiteral:      "literal",
	KindLangLiteral:  "lang-literal",
	KindInternalLink: "internal-link",
	KindExternalLink: "external-link",
	KindList:         "list",
}

func (k ValueKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ValueKind(%d)", int(k))
}

// ParseValueKind converts a configuration string to a ValueKind. The empty
// string means auto.
func ParseValueKind(s string) (ValueKind, error) {
	if s == "" {
		return KindAuto, nil
	}
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindAuto, fmt.Errorf("unknown value kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k ValueKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ValueKind) UnmarshalText(b []byte) error {
	v, err := ParseValueKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
