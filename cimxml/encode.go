// Package cimxml implements the CIM-XML wire encoding for the six read-only
// WBEM operations: request documents are built from Class/Instance targets
// and server responses are decoded back into the cim object model.
package cimxml

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/deejross/go-wbem/cim"
)

// The six intrinsic operations this codec speaks
const (
	GetClass               = "GetClass"
	EnumerateClasses       = "EnumerateClasses"
	EnumerateClassNames    = "EnumerateClassNames"
	GetInstance            = "GetInstance"
	EnumerateInstances     = "EnumerateInstances"
	EnumerateInstanceNames = "EnumerateInstanceNames"
)

// Methods lists the supported operation names
var Methods = []string{
	GetClass,
	EnumerateClasses,
	EnumerateClassNames,
	GetInstance,
	EnumerateInstances,
	EnumerateInstanceNames,
}

// IsMethod reports whether name is one of the supported operations
func IsMethod(name string) bool {
	for _, m := range Methods {
		if m == name {
			return true
		}
	}
	return false
}

// Headers carries the protocol-required HTTP header values for one request.
// The codec produces them; the transport puts them on the wire.
type Headers struct {
	CIMOperation string
	CIMMethod    string
	CIMObject    string
}

// Config is the client configuration the encoder needs
type Config struct {
	// Namespace used when the target does not carry one
	Namespace string

	// MessageID for the MESSAGE element. Defaults to "1001"; the codec never
	// invents one, so repeated encodes of the same target are byte-identical.
	MessageID string
}

const (
	cimVersion      = "2.0"
	dtdVersion      = "2.0"
	protocolVersion = "1.0"
	defaultMsgID    = "1001"
)

// EncodeRequest builds a complete CIM-XML request document for the given
// operation and target, plus the header values the transport must send.
//
// The target may be nil only for EnumerateClasses and EnumerateClassNames,
// where an absent ClassName parameter means all classes in the namespace.
// Keybinding order follows the Instance's insertion order, never re-sorted.
func EncodeRequest(method string, target cim.Object, cfg Config) (Headers, []byte, error) {
	if !IsMethod(method) {
		return Headers{}, nil, &cim.ArgumentError{Op: method, Reason: "unsupported operation"}
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = cim.DefaultNamespace
	}
	if target != nil && target.ObjectNamespace() != "" {
		namespace = target.ObjectNamespace()
	}

	msgID := cfg.MessageID
	if msgID == "" {
		msgID = defaultMsgID
	}

	w := newWriter()
	w.raw(`<?xml version="1.0" encoding="utf-8"?>`)
	w.open("CIM", "CIMVERSION", cimVersion, "DTDVERSION", dtdVersion)
	w.open("MESSAGE", "ID", msgID, "PROTOCOLVERSION", protocolVersion)
	w.open("SIMPLEREQ")
	w.open("IMETHODCALL", "NAME", method)

	w.open("LOCALNAMESPACEPATH")
	for _, part := range strings.Split(namespace, "/") {
		w.empty("NAMESPACE", "NAME", part)
	}
	w.close("LOCALNAMESPACEPATH")

	if err := writeTargetParam(w, method, target); err != nil {
		return Headers{}, nil, err
	}

	w.close("IMETHODCALL")
	w.close("SIMPLEREQ")
	w.close("MESSAGE")
	w.close("CIM")

	headers := Headers{
		CIMOperation: "MethodCall",
		CIMMethod:    method,
		CIMObject:    namespace,
	}
	return headers, w.bytes(), nil
}

// requiresTarget reports whether the operation cannot run without a named
// target; only the class enumerations accept an absent ClassName (meaning all
// classes in the namespace).
func requiresTarget(method string) bool {
	return method != EnumerateClasses && method != EnumerateClassNames
}

// writeTargetParam emits the IPARAMVALUE for the operation's target. Class
// targets carry a CLASSNAME parameter, instance targets an INSTANCENAME.
func writeTargetParam(w *writer, method string, target cim.Object) error {
	switch t := target.(type) {
	case nil:
		if requiresTarget(method) {
			return &cim.ArgumentError{Op: method, Reason: "operation requires a target"}
		}
		return nil
	case *cim.Class:
		if t == nil || t.Name == "" {
			if requiresTarget(method) {
				return &cim.ArgumentError{Op: method, Reason: "operation requires a class name"}
			}
			return nil
		}
		w.open("IPARAMVALUE", "NAME", "ClassName")
		w.empty("CLASSNAME", "NAME", t.Name)
		w.close("IPARAMVALUE")
	case *cim.Instance:
		if t == nil {
			return &cim.ArgumentError{Op: method, Reason: "operation requires an instance name"}
		}
		w.open("IPARAMVALUE", "NAME", "InstanceName")
		writeInstanceName(w, t)
		w.close("IPARAMVALUE")
	default:
		return &cim.ArgumentError{Op: method, Reason: fmt.Sprintf("unsupported target %T", target)}
	}
	return nil
}

// writeInstanceName renders an INSTANCENAME with the instance's keybindings
// in stored order. Reference keybindings nest a further INSTANCENAME.
func writeInstanceName(w *writer, inst *cim.Instance) {
	keys := inst.Keybindings()
	if len(keys) == 0 {
		w.empty("INSTANCENAME", "CLASSNAME", inst.ClassName)
		return
	}

	w.open("INSTANCENAME", "CLASSNAME", inst.ClassName)
	for _, kb := range keys {
		if kb.Value.Kind() == cim.KindReference {
			w.open("KEYBINDING", "NAME", kb.Name)
			w.open("VALUE.REFERENCE")
			if ref := kb.Value.Ref(); ref != nil {
				writeInstanceName(w, ref)
			}
			w.close("VALUE.REFERENCE")
			w.close("KEYBINDING")
			continue
		}

		w.open("KEYBINDING", "NAME", kb.Name)
		w.text("KEYVALUE", kb.Value.Text(), "VALUETYPE", string(kb.Value.Type()))
		w.close("KEYBINDING")
	}
	w.close("INSTANCENAME")
}

// writer is a minimal deterministic XML builder: attributes are emitted in
// the order given, text and attribute values are escaped.
type writer struct {
	sb strings.Builder
}

func newWriter() *writer {
	return &writer{}
}

func (w *writer) raw(s string) {
	w.sb.WriteString(s)
}

func (w *writer) open(name string, attrs ...string) {
	w.sb.WriteByte('<')
	w.sb.WriteString(name)
	w.writeAttrs(attrs)
	w.sb.WriteByte('>')
}

func (w *writer) empty(name string, attrs ...string) {
	w.sb.WriteByte('<')
	w.sb.WriteString(name)
	w.writeAttrs(attrs)
	w.sb.WriteString("/>")
}

func (w *writer) text(name, text string, attrs ...string) {
	w.open(name, attrs...)
	_ = xml.EscapeText(&w.sb, []byte(text))
	w.close(name)
}

func (w *writer) close(name string) {
	w.sb.WriteString("</")
	w.sb.WriteString(name)
	w.sb.WriteByte('>')
}

func (w *writer) writeAttrs(attrs []string) {
	for i := 0; i+1 < len(attrs); i += 2 {
		w.sb.WriteByte(' ')
		w.sb.WriteString(attrs[i])
		w.sb.WriteString(`="`)
		_ = xml.EscapeText(&w.sb, []byte(attrs[i+1]))
		w.sb.WriteByte('"')
	}
}

func (w *writer) bytes() []byte {
	return []byte(w.sb.String())
}
