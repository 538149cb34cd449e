package metadata

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Atom describes one elementary field type: how a submitted string becomes a
// typed value and how a typed value becomes a display string. Display may be
// nil, meaning the stored value passes through unchanged; the sparse mapping
// tables rely on that to skip dispatch entirely.
type Atom struct {
	Name     string
	JSONType string // JSON Schema type used for document validation
	Format   string // optional JSON Schema format
	Control  string // widget hint for the template layer
	FormType string // input type for the template layer

	Display func(v any) any
	Convert func(s string) (any, error)
}

// AtomSet is an explicitly constructed atom registry, owned by the
// application context. Built once at startup, read-only afterwards.
type AtomSet struct {
	atoms map[string]Atom
}

// NewAtomSet returns an AtomSet with the built-in atoms registered.
func NewAtomSet() *AtomSet {
	s := &AtomSet{atoms: make(map[string]Atom)}
	for _, a := range builtinAtoms() {
		s.atoms[a.Name] = a
	}
	return s
}

// Register adds or replaces an atom. Must only be called during startup.
func (s *AtomSet) Register(a Atom) {
	s.atoms[a.Name] = a
}

// Get returns the atom with the given name.
func (s *AtomSet) Get(name string) (Atom, bool) {
	a, ok := s.atoms[name]
	return a, ok
}

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04"
)

func builtinAtoms() []Atom {
	return []Atom{
		{
			Name: "string", JSONType: "string", Control: "input", FormType: "text",
			Convert: func(s string) (any, error) { return s, nil },
		},
		{
			Name: "text", JSONType: "string", Control: "textarea", FormType: "text",
			Convert: func(s string) (any, error) { return s, nil },
		},
		{
			Name: "memo", JSONType: "string", Control: "textarea", FormType: "text",
			Convert: func(s string) (any, error) { return s, nil },
		},
		{
			Name: "int", JSONType: "integer", Control: "input", FormType: "number",
			Display: func(v any) any { return fmt.Sprintf("%v", v) },
			Convert: func(s string) (any, error) { return strconv.Atoi(strings.TrimSpace(s)) },
		},
		{
			Name: "float", JSONType: "number", Control: "input", FormType: "number",
			Display: func(v any) any { return fmt.Sprintf("%v", v) },
			Convert: func(s string) (any, error) { return strconv.ParseFloat(strings.TrimSpace(s), 64) },
		},
		{
			Name: "decimal", JSONType: "string", Control: "input", FormType: "number",
			Display: displayDecimal,
			Convert: func(s string) (any, error) { return decimal.NewFromString(strings.TrimSpace(s)) },
		},
		{
			Name: "boolean", JSONType: "boolean", Control: "checkbox", FormType: "checkbox",
			Display: func(v any) any {
				if b, ok := v.(bool); ok && b {
					return "yes"
				}
				return "no"
			},
			Convert: func(s string) (any, error) {
				switch strings.ToLower(strings.TrimSpace(s)) {
				case "true", "yes", "on", "1":
					return true, nil
				case "false", "no", "off", "0", "":
					return false, nil
				}
				return nil, fmt.Errorf("not a boolean: %q", s)
			},
		},
		{
			Name: "date", JSONType: "string", Format: "date-time", Control: "input", FormType: "date",
			Display: displayTime(dateLayout),
			Convert: convertTime(dateLayout),
		},
		{
			Name: "datetime", JSONType: "string", Format: "date-time", Control: "input", FormType: "datetime-local",
			Display: displayTime(datetimeLayout),
			Convert: convertTime(datetimeLayout, time.RFC3339, datetimeLayout+":05"),
		},
		{
			Name: "url", JSONType: "string", Format: "uri", Control: "input", FormType: "url",
			Convert: func(s string) (any, error) { return s, nil },
		},
		{
			// itemref values are stored as the referenced item's id; the
			// mapping layer turns them into labeled links.
			Name: "ref", JSONType: "string", Control: "input", FormType: "hidden",
			Convert: func(s string) (any, error) { return s, nil },
		},
	}
}

func displayDecimal(v any) any {
	if d, ok := v.(decimal.Decimal); ok {
		return d.String()
	}
	return fmt.Sprintf("%v", v)
}

func displayTime(layout string) func(any) any {
	return func(v any) any {
		switch t := v.(type) {
		case time.Time:
			return t.Format(layout)
		case string:
			// engines that store temporal values as strings hand them back as such
			if parsed, err := time.Parse(time.RFC3339, t); err == nil {
				return parsed.Format(layout)
			}
			return t
		}
		return fmt.Sprintf("%v", v)
	}
}

func convertTime(layouts ...string) func(string) (any, error) {
	return func(s string) (any, error) {
		s = strings.TrimSpace(s)
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("not a valid time: %q", s)
	}
}
