package cim

import (
	"fmt"
	"strings"
)

// Shortcuts maps full class names to shorter aliases used in reference
// strings. The alias is applied when serializing and expanded when parsing,
// so both spellings name the same class.
type Shortcuts map[string]string

// Shorten returns the alias for a class name, or the name itself
func (s Shortcuts) Shorten(name string) string {
	if alias, ok := s[name]; ok {
		return alias
	}
	return name
}

// Expand returns the full class name for an alias, or the name itself
func (s Shortcuts) Expand(name string) string {
	for full, alias := range s {
		if alias == name {
			return full
		}
	}
	return name
}

// FormatReference serializes a Class or Instance to its reference string:
// a semicolon-separated list of key=value pairs with the reserved keys $cn
// (class name) and $ns (namespace, omitted when unset or default). Instance
// keybindings follow in insertion order; non-string keybindings carry a
// ?type suffix so the typed value survives a round trip.
//
// Known limitation: values containing ';' or '=' have no escaping rule and
// will not round-trip, and a string value whose text ends in '?<cim-type>'
// parses back as the typed form. Array and reference keybindings are likewise
// not representable in the string form.
func FormatReference(obj Object) string {
	return FormatReferenceWith(obj, nil)
}

// FormatReferenceWith serializes like FormatReference, applying the shortcut
// table to the class name.
func FormatReferenceWith(obj Object, sc Shortcuts) string {
	parts := []string{"$cn=" + sc.Shorten(obj.ObjectClassName())}
	if ns := obj.ObjectNamespace(); ns != "" && ns != DefaultNamespace {
		parts = append(parts, "$ns="+ns)
	}

	if inst, ok := obj.(*Instance); ok {
		for _, kb := range inst.Keybindings() {
			if kb.Value.Kind() == KindString {
				parts = append(parts, fmt.Sprintf("%s=%s", kb.Name, kb.Value.Str()))
			} else {
				parts = append(parts, fmt.Sprintf("%s=%s?%s", kb.Name, kb.Value.Text(), kb.Value.Type()))
			}
		}
	}

	return strings.Join(parts, ";")
}

// ParseReference parses a reference string back into a Class or Instance.
// An input carrying only the reserved keys yields a *Class; any other key
// becomes an Instance keybinding, in encounter order. The namespace is left
// empty when $ns is absent; callers apply their configured default.
//
// Parsing fails when $cn is missing or any segment lacks '='.
func ParseReference(s string) (Object, error) {
	return ParseReferenceWith(s, nil)
}

// ParseReferenceWith parses like ParseReference, expanding the class name
// through the shortcut table.
func ParseReferenceWith(s string, sc Shortcuts) (Object, error) {
	classname := ""
	namespace := ""
	var keybindings []Property

	for _, segment := range strings.Split(strings.TrimSpace(s), ";") {
		if segment == "" {
			continue
		}
		key, val, ok := strings.Cut(segment, "=")
		if !ok {
			return nil, &ParseError{Input: s, Reason: fmt.Sprintf("segment %q has no '='", segment)}
		}

		switch key {
		case "$cn", "classname":
			classname = sc.Expand(val)
		case "$ns", "namespace":
			namespace = val
		default:
			v, err := parseKeybindingValue(val)
			if err != nil {
				return nil, &ParseError{Input: s, Reason: err.Error()}
			}
			keybindings = append(keybindings, Property{Name: key, Value: v, Key: true})
		}
	}

	if classname == "" {
		return nil, &ParseError{Input: s, Reason: "missing required $cn key"}
	}

	if len(keybindings) == 0 {
		return NewClass(classname, namespace), nil
	}

	inst := NewInstance(classname, namespace)
	for _, kb := range keybindings {
		inst.SetKey(kb.Name, kb.Value)
	}
	return inst, nil
}

// parseKeybindingValue handles the optional ?type suffix on keybinding
// values. A suffix that does not name a CIM type is not a type marker, so the
// whole value is an opaque string; only a recognized type with an unparsable
// literal is an error.
func parseKeybindingValue(val string) (Value, error) {
	text, typ, ok := strings.Cut(val, "?")
	if !ok || !knownType(Type(typ)) {
		return String(val), nil
	}
	v, err := ParseValue(text, Type(typ))
	if err != nil {
		return Value{}, fmt.Errorf("keybinding value %q: invalid %s literal", text, typ)
	}
	return v, nil
}
