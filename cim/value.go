package cim

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Type is a CIM wire type name as it appears in TYPE/VALUETYPE attributes
// (string, uint8..uint64, sint8..sint64, boolean, real32, real64, datetime,
// reference).
type Type string

const (
	TypeString    Type = "string"
	TypeUint8     Type = "uint8"
	TypeUint16    Type = "uint16"
	TypeUint32    Type = "uint32"
	TypeUint64    Type = "uint64"
	TypeSint8     Type = "sint8"
	TypeSint16    Type = "sint16"
	TypeSint32    Type = "sint32"
	TypeSint64    Type = "sint64"
	TypeBoolean   Type = "boolean"
	TypeReal32    Type = "real32"
	TypeReal64    Type = "real64"
	TypeDateTime  Type = "datetime"
	TypeReference Type = "reference"
)

// Kind identifies which case of the Value union is populated
type Kind int

const (
	KindString Kind = iota
	KindUint
	KindSint
	KindBool
	KindReal
	KindDateTime
	KindInterval
	KindReference
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindUint:
		return "uint"
	case KindSint:
		return "sint"
	case KindBool:
		return "bool"
	case KindReal:
		return "real"
	case KindDateTime:
		return "datetime"
	case KindInterval:
		return "interval"
	case KindReference:
		return "reference"
	case KindArray:
		return "array"
	}
	return "unknown"
}

// Value is a tagged union over the CIM property value space. The zero value
// is the empty string. All encode/decode logic dispatches on the Kind tag.
//
// A reference Value carries instance identity only (class name, namespace,
// keybindings), never a live server object.
type Value struct {
	kind Kind
	typ  Type

	str   string
	u     uint64
	s     int64
	b     bool
	r     float64
	t     time.Time
	d     time.Duration
	ref   *Instance
	elems []Value
}

// String returns a string Value
func String(s string) Value {
	return Value{kind: KindString, typ: TypeString, str: s}
}

// Uint returns an unsigned integer Value with the given bit width (8/16/32/64)
func Uint(v uint64, bits int) Value {
	return Value{kind: KindUint, typ: uintType(bits), u: v}
}

// Sint returns a signed integer Value with the given bit width (8/16/32/64)
func Sint(v int64, bits int) Value {
	return Value{kind: KindSint, typ: sintType(bits), s: v}
}

// Bool returns a boolean Value
func Bool(v bool) Value {
	return Value{kind: KindBool, typ: TypeBoolean, b: v}
}

// Real returns a floating point Value with the given bit width (32/64)
func Real(v float64, bits int) Value {
	typ := TypeReal64
	if bits == 32 {
		typ = TypeReal32
	}
	return Value{kind: KindReal, typ: typ, r: v}
}

// DateTime returns an absolute timestamp Value
func DateTime(t time.Time) Value {
	return Value{kind: KindDateTime, typ: TypeDateTime, t: t}
}

// Interval returns a duration Value (CIM interval form of datetime)
func Interval(d time.Duration) Value {
	return Value{kind: KindInterval, typ: TypeDateTime, d: d}
}

// Reference returns a Value referencing another instance by identity
func Reference(inst *Instance) Value {
	return Value{kind: KindReference, typ: TypeReference, ref: inst}
}

// Array returns an array Value. Elements must be homogeneously typed;
// mixing kinds is an error.
func Array(elems ...Value) (Value, error) {
	for i := 1; i < len(elems); i++ {
		if elems[i].kind != elems[0].kind || elems[i].typ != elems[0].typ {
			return Value{}, fmt.Errorf("array elements must share one type: element %d is %s, element 0 is %s",
				i, elems[i].typ, elems[0].typ)
		}
	}
	v := Value{kind: KindArray, elems: elems}
	if len(elems) > 0 {
		v.typ = elems[0].typ
	} else {
		v.typ = TypeString
	}
	return v, nil
}

// Kind returns the union tag
func (v Value) Kind() Kind {
	return v.kind
}

// Type returns the CIM wire type name. For arrays this is the element type.
func (v Value) Type() Type {
	return v.typ
}

// IsArray reports whether the Value holds an array
func (v Value) IsArray() bool {
	return v.kind == KindArray
}

// Str returns the string case, or "" for other kinds
func (v Value) Str() string {
	return v.str
}

// Uint64 returns the unsigned integer case
func (v Value) Uint64() uint64 {
	return v.u
}

// Int64 returns the signed integer case
func (v Value) Int64() int64 {
	return v.s
}

// Boolean returns the boolean case
func (v Value) Boolean() bool {
	return v.b
}

// Float64 returns the real case
func (v Value) Float64() float64 {
	return v.r
}

// Time returns the datetime case
func (v Value) Time() time.Time {
	return v.t
}

// Duration returns the interval case
func (v Value) Duration() time.Duration {
	return v.d
}

// Ref returns the referenced instance identity, or nil
func (v Value) Ref() *Instance {
	return v.ref
}

// Elems returns the array elements, or nil
func (v Value) Elems() []Value {
	return v.elems
}

// Text renders the Value as its CIM-XML literal text: decimal for integers,
// TRUE/FALSE for booleans, DMTF datetime/interval forms for timestamps.
// Reference and array Values have no single literal form and render empty.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindUint:
		return strconv.FormatUint(v.u, 10)
	case KindSint:
		return strconv.FormatInt(v.s, 10)
	case KindBool:
		if v.b {
			return "TRUE"
		}
		return "FALSE"
	case KindReal:
		bits := 64
		if v.typ == TypeReal32 {
			bits = 32
		}
		return strconv.FormatFloat(v.r, 'f', -1, bits)
	case KindDateTime:
		return formatDateTime(v.t)
	case KindInterval:
		return formatInterval(v.d)
	}
	return ""
}

// Equal reports structural equality between two Values
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind || v.typ != o.typ {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindUint:
		return v.u == o.u
	case KindSint:
		return v.s == o.s
	case KindBool:
		return v.b == o.b
	case KindReal:
		return v.r == o.r
	case KindDateTime:
		return v.t.Equal(o.t)
	case KindInterval:
		return v.d == o.d
	case KindReference:
		if v.ref == nil || o.ref == nil {
			return v.ref == o.ref
		}
		return v.ref.Equal(o.ref)
	case KindArray:
		if len(v.elems) != len(o.elems) {
			return false
		}
		for i := range v.elems {
			if !v.elems[i].Equal(o.elems[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// ParseValue parses a CIM-XML literal into a typed Value. The type string
// drives the conversion; an unrecognized type is reported by name.
func ParseValue(text string, typ Type) (Value, error) {
	name := string(typ)
	switch {
	case typ == TypeString:
		return String(text), nil
	case strings.HasPrefix(name, "uint"):
		bits, err := intBits(name[4:])
		if err != nil {
			return Value{}, &DecodeError{Element: "VALUE", Reason: fmt.Sprintf("unknown CIM type %q", name)}
		}
		u, err := strconv.ParseUint(strings.TrimSpace(text), 10, bits)
		if err != nil {
			return Value{}, &DecodeError{Element: "VALUE", Reason: fmt.Sprintf("invalid %s literal %q", name, text)}
		}
		return Uint(u, bits), nil
	case strings.HasPrefix(name, "sint"):
		bits, err := intBits(name[4:])
		if err != nil {
			return Value{}, &DecodeError{Element: "VALUE", Reason: fmt.Sprintf("unknown CIM type %q", name)}
		}
		s, err := strconv.ParseInt(strings.TrimSpace(text), 10, bits)
		if err != nil {
			return Value{}, &DecodeError{Element: "VALUE", Reason: fmt.Sprintf("invalid %s literal %q", name, text)}
		}
		return Sint(s, bits), nil
	case typ == TypeReal32, typ == TypeReal64:
		bits := 64
		if typ == TypeReal32 {
			bits = 32
		}
		r, err := strconv.ParseFloat(strings.TrimSpace(text), bits)
		if err != nil {
			return Value{}, &DecodeError{Element: "VALUE", Reason: fmt.Sprintf("invalid %s literal %q", name, text)}
		}
		return Real(r, bits), nil
	case typ == TypeBoolean:
		return Bool(strings.EqualFold(strings.TrimSpace(text), "TRUE")), nil
	case typ == TypeDateTime:
		return parseDateTime(strings.TrimSpace(text))
	}
	return Value{}, &DecodeError{Element: "VALUE", Reason: fmt.Sprintf("unknown CIM type %q", name)}
}

func uintType(bits int) Type {
	switch bits {
	case 8:
		return TypeUint8
	case 16:
		return TypeUint16
	case 64:
		return TypeUint64
	}
	return TypeUint32
}

func sintType(bits int) Type {
	switch bits {
	case 8:
		return TypeSint8
	case 16:
		return TypeSint16
	case 64:
		return TypeSint64
	}
	return TypeSint32
}

// knownType reports whether typ names a recognized CIM wire type
func knownType(typ Type) bool {
	switch typ {
	case TypeString, TypeBoolean, TypeDateTime, TypeReal32, TypeReal64,
		TypeUint8, TypeUint16, TypeUint32, TypeUint64,
		TypeSint8, TypeSint16, TypeSint32, TypeSint64:
		return true
	}
	return false
}

func intBits(suffix string) (int, error) {
	switch suffix {
	case "8":
		return 8, nil
	case "16":
		return 16, nil
	case "32":
		return 32, nil
	case "64":
		return 64, nil
	}
	return 0, fmt.Errorf("invalid bit width %q", suffix)
}

// formatDateTime renders the DMTF absolute timestamp form:
// yyyymmddhhmmss.mmmmmm followed by the UTC offset in minutes.
func formatDateTime(t time.Time) string {
	_, offsetSec := t.Zone()
	return fmt.Sprintf("%s%+04d", t.Format("20060102150405.000000"), offsetSec/60)
}

// formatInterval renders the DMTF interval form: ddddddddhhmmss.mmmmmm:000
func formatInterval(d time.Duration) string {
	days := int64(d / (24 * time.Hour))
	rem := d % (24 * time.Hour)
	hours := int64(rem / time.Hour)
	rem %= time.Hour
	minutes := int64(rem / time.Minute)
	rem %= time.Minute
	seconds := int64(rem / time.Second)
	micros := int64((rem % time.Second) / time.Microsecond)
	return fmt.Sprintf("%08d%02d%02d%02d.%06d:000", days, hours, minutes, seconds, micros)
}

// parseDateTime handles both DMTF forms: interval strings end in ":000",
// absolute timestamps carry a signed minute offset.
func parseDateTime(text string) (Value, error) {
	if strings.HasSuffix(text, ":000") && len(text) == 25 {
		days, err1 := strconv.Atoi(text[0:8])
		hours, err2 := strconv.Atoi(text[8:10])
		minutes, err3 := strconv.Atoi(text[10:12])
		seconds, err4 := strconv.Atoi(text[12:14])
		micros, err5 := strconv.Atoi(text[15:21])
		for _, err := range []error{err1, err2, err3, err4, err5} {
			if err != nil {
				return Value{}, &DecodeError{Element: "VALUE", Reason: fmt.Sprintf("invalid datetime interval %q", text)}
			}
		}
		d := time.Duration(days)*24*time.Hour +
			time.Duration(hours)*time.Hour +
			time.Duration(minutes)*time.Minute +
			time.Duration(seconds)*time.Second +
			time.Duration(micros)*time.Microsecond
		return Interval(d), nil
	}

	stamp := text
	offsetMin := 0
	if idx := strings.LastIndexAny(text, "+-"); idx > 0 {
		mins, err := strconv.Atoi(text[idx+1:])
		if err != nil {
			return Value{}, &DecodeError{Element: "VALUE", Reason: fmt.Sprintf("invalid datetime offset in %q", text)}
		}
		if text[idx] == '-' {
			mins = -mins
		}
		offsetMin = mins
		stamp = text[:idx]
	}

	t, err := time.Parse("20060102150405.000000", stamp)
	if err != nil {
		return Value{}, &DecodeError{Element: "VALUE", Reason: fmt.Sprintf("invalid datetime literal %q", text)}
	}
	// The parsed wall clock is local to the embedded offset, so rebuild the
	// timestamp in that zone rather than converting the instant.
	zone := time.FixedZone("", offsetMin*60)
	t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), zone)
	return DateTime(t), nil
}
