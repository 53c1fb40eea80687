package cimxml

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/deejross/go-wbem/cim"
)

// DecodeResponse parses raw CIM-XML response bytes into a Response for the
// operation that produced them. Malformed XML fails with a ParseError before
// any semantic inspection; a server-reported ERROR element fails with a
// cim.Fault and yields no partial results; anything else missing from the
// expected envelope fails with a DecodeError naming the element.
//
// The namespace is stamped onto decoded objects, which carry none on the wire.
func DecodeResponse(method, namespace string, raw []byte) (*cim.Response, error) {
	var env envelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, &cim.ParseError{Reason: "malformed response XML", Err: err}
	}

	if env.Message == nil {
		return nil, &cim.DecodeError{Element: "MESSAGE", Reason: "element missing from response"}
	}
	if env.Message.SimpleRsp == nil {
		return nil, &cim.DecodeError{Element: "SIMPLERSP", Reason: "element missing from response"}
	}
	rsp := env.Message.SimpleRsp.MethodResponse
	if rsp == nil {
		return nil, &cim.DecodeError{Element: "IMETHODRESPONSE", Reason: "element missing from response"}
	}

	if rsp.Error != nil {
		code, err := strconv.Atoi(rsp.Error.Code)
		if err != nil {
			return nil, &cim.DecodeError{Element: "ERROR", Reason: fmt.Sprintf("non-numeric CODE %q", rsp.Error.Code)}
		}
		return nil, &cim.Fault{Code: code, Description: rsp.Error.Description}
	}

	if rsp.ReturnValue == nil {
		return nil, &cim.DecodeError{Element: "IRETURNVALUE", Reason: "element missing from response"}
	}

	resp := &cim.Response{Method: method}
	if err := decodeReturnValue(resp, method, namespace, rsp.ReturnValue); err != nil {
		return nil, err
	}
	return resp, nil
}

// decodeReturnValue routes the payload by operation kind: name-returning
// operations produce name-only objects, enumerations produce full objects,
// GetInstance produces the flat property set.
func decodeReturnValue(resp *cim.Response, method, namespace string, rv *returnValue) error {
	switch method {
	case EnumerateClassNames:
		for _, cn := range rv.ClassNames {
			resp.Instances = append(resp.Instances, cim.NewClass(cn.Name, namespace))
		}

	case EnumerateInstanceNames:
		for _, in := range rv.InstanceNames {
			inst, err := decodeInstanceName(&in, namespace)
			if err != nil {
				return err
			}
			resp.Instances = append(resp.Instances, inst)
		}

	case GetClass, EnumerateClasses:
		for _, cl := range rv.Classes {
			resp.Instances = append(resp.Instances, decodeClass(&cl, namespace))
		}

	case EnumerateInstances:
		for _, ie := range rv.Instances {
			inst, err := decodeInstance(&ie, namespace)
			if err != nil {
				return err
			}
			resp.Instances = append(resp.Instances, inst)
		}

	case GetInstance:
		// Instance names still decode as objects; the INSTANCE payload is a
		// flat property set on the Response.
		for _, in := range rv.InstanceNames {
			inst, err := decodeInstanceName(&in, namespace)
			if err != nil {
				return err
			}
			resp.Instances = append(resp.Instances, inst)
		}
		if len(rv.Instances) > 0 {
			props, err := decodeProperties(rv.Instances[0].Children)
			if err != nil {
				return err
			}
			resp.Properties = props
		}

	default:
		return &cim.ArgumentError{Op: method, Reason: "unsupported operation"}
	}
	return nil
}

func decodeInstanceName(in *instanceNameElem, namespace string) (*cim.Instance, error) {
	inst := cim.NewInstance(in.ClassName, namespace)
	for _, kb := range in.Keybindings {
		switch {
		case kb.KeyValue != nil:
			typ := kb.KeyValue.ValueType
			if typ == "" {
				typ = "string"
			}
			v, err := cim.ParseValue(strings.TrimSpace(kb.KeyValue.Text), cim.Type(typ))
			if err != nil {
				return nil, err
			}
			inst.SetKey(kb.Name, v)
		case kb.ValueReference != nil && kb.ValueReference.InstanceName != nil:
			ref, err := decodeInstanceName(kb.ValueReference.InstanceName, namespace)
			if err != nil {
				return nil, err
			}
			inst.SetKey(kb.Name, cim.Reference(ref))
		default:
			return nil, &cim.DecodeError{Element: "KEYBINDING", Reason: fmt.Sprintf("keybinding %q has no value", kb.Name)}
		}
	}
	return inst, nil
}

func decodeClass(cl *classElem, namespace string) *cim.Class {
	class := cim.NewClass(cl.Name, namespace)
	for _, child := range cl.Children {
		switch child.XMLName.Local {
		case "PROPERTY", "PROPERTY.ARRAY":
			class.Properties = append(class.Properties, cim.PropertyDef{
				Name: child.Name,
				Type: cim.Type(child.Type),
			})
		case "PROPERTY.REFERENCE":
			class.Properties = append(class.Properties, cim.PropertyDef{
				Name: child.Name,
				Type: cim.TypeReference,
			})
		}
	}
	return class
}

func decodeInstance(ie *instanceElem, namespace string) (*cim.Instance, error) {
	inst := cim.NewInstance(ie.ClassName, namespace)
	props, err := decodeProperties(ie.Children)
	if err != nil {
		return nil, err
	}
	for _, p := range props {
		inst.SetProperty(p.Name, p.Value)
	}
	return inst, nil
}

// decodeProperties converts PROPERTY/PROPERTY.ARRAY/PROPERTY.REFERENCE
// children into typed properties, preserving document order. Other child
// elements (qualifiers) are skipped.
func decodeProperties(children []propertyElem) ([]cim.Property, error) {
	var props []cim.Property
	for _, child := range children {
		switch child.XMLName.Local {
		case "PROPERTY":
			if child.Value == nil {
				// NULL property, skip like an absent one
				continue
			}
			v, err := cim.ParseValue(strings.TrimSpace(child.Value.Text), cim.Type(child.Type))
			if err != nil {
				return nil, err
			}
			props = append(props, cim.Property{Name: child.Name, Value: v})

		case "PROPERTY.ARRAY":
			if child.ValueArray == nil {
				continue
			}
			elems := make([]cim.Value, 0, len(child.ValueArray.Values))
			for _, ve := range child.ValueArray.Values {
				v, err := cim.ParseValue(strings.TrimSpace(ve.Text), cim.Type(child.Type))
				if err != nil {
					return nil, err
				}
				elems = append(elems, v)
			}
			arr, err := cim.Array(elems...)
			if err != nil {
				return nil, &cim.DecodeError{Element: "PROPERTY.ARRAY", Reason: err.Error()}
			}
			props = append(props, cim.Property{Name: child.Name, Value: arr})

		case "PROPERTY.REFERENCE":
			if child.ValueReference == nil || child.ValueReference.InstanceName == nil {
				continue
			}
			ref, err := decodeInstanceName(child.ValueReference.InstanceName, "")
			if err != nil {
				return nil, err
			}
			props = append(props, cim.Property{Name: child.Name, Value: cim.Reference(ref)})
		}
	}
	return props, nil
}

// Wire element shapes. Pointer fields distinguish a missing element from an
// empty one so envelope checks can name what is absent.

type envelope struct {
	XMLName xml.Name     `xml:"CIM"`
	Message *messageElem `xml:"MESSAGE"`
}

type messageElem struct {
	SimpleRsp *simpleRspElem `xml:"SIMPLERSP"`
}

type simpleRspElem struct {
	MethodResponse *methodResponseElem `xml:"IMETHODRESPONSE"`
}

type methodResponseElem struct {
	Name        string       `xml:"NAME,attr"`
	Error       *errorElem   `xml:"ERROR"`
	ReturnValue *returnValue `xml:"IRETURNVALUE"`
}

type errorElem struct {
	Code        string `xml:"CODE,attr"`
	Description string `xml:"DESCRIPTION,attr"`
}

type returnValue struct {
	ClassNames    []classNameElem    `xml:"CLASSNAME"`
	InstanceNames []instanceNameElem `xml:"INSTANCENAME"`
	Classes       []classElem        `xml:"CLASS"`
	Instances     []instanceElem     `xml:"INSTANCE"`
}

type classNameElem struct {
	Name string `xml:"NAME,attr"`
}

type instanceNameElem struct {
	ClassName   string           `xml:"CLASSNAME,attr"`
	Keybindings []keybindingElem `xml:"KEYBINDING"`
}

type keybindingElem struct {
	Name           string        `xml:"NAME,attr"`
	KeyValue       *keyValueElem `xml:"KEYVALUE"`
	ValueReference *valueRefElem `xml:"VALUE.REFERENCE"`
}

type keyValueElem struct {
	ValueType string `xml:"VALUETYPE,attr"`
	Text      string `xml:",chardata"`
}

type valueRefElem struct {
	InstanceName *instanceNameElem `xml:"INSTANCENAME"`
}

type classElem struct {
	Name       string         `xml:"NAME,attr"`
	SuperClass string         `xml:"SUPERCLASS,attr"`
	Children   []propertyElem `xml:",any"`
}

type instanceElem struct {
	ClassName string         `xml:"CLASSNAME,attr"`
	Children  []propertyElem `xml:",any"`
}

type propertyElem struct {
	XMLName        xml.Name
	Name           string          `xml:"NAME,attr"`
	Type           string          `xml:"TYPE,attr"`
	Value          *valueElem      `xml:"VALUE"`
	ValueArray     *valueArrayElem `xml:"VALUE.ARRAY"`
	ValueReference *valueRefElem   `xml:"VALUE.REFERENCE"`
}

type valueElem struct {
	Text string `xml:",chardata"`
}

type valueArrayElem struct {
	Values []valueElem `xml:"VALUE"`
}
