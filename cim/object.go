package cim

// DefaultNamespace is the namespace assumed when none is given
const DefaultNamespace = "root/cimv2"

// Object is the two-case variant returned wherever a target or result may be
// either a class or an instance. The only implementations are *Class and
// *Instance.
type Object interface {
	object()

	// ObjectClassName returns the class name of the object
	ObjectClassName() string

	// ObjectNamespace returns the namespace, which may be empty
	ObjectNamespace() string
}

// PropertyDef is a declared property on a Class
type PropertyDef struct {
	Name string
	Type Type
}

// Class represents a CIM class: its name, namespace, and (when decoded from
// a server response) its declared properties in document order.
type Class struct {
	Name       string
	Namespace  string
	Properties []PropertyDef
}

// NewClass creates a Class in the given namespace. An empty namespace is
// resolved against the caller's default at use time.
func NewClass(name, namespace string) *Class {
	return &Class{Name: name, Namespace: namespace}
}

func (c *Class) object() {}

// ObjectClassName returns the class name
func (c *Class) ObjectClassName() string {
	if c == nil {
		return ""
	}
	return c.Name
}

// ObjectNamespace returns the namespace
func (c *Class) ObjectNamespace() string {
	if c == nil {
		return ""
	}
	return c.Namespace
}

// Equal reports structural equality with another Class
func (c *Class) Equal(o *Class) bool {
	if c == nil || o == nil {
		return c == o
	}
	if c.Name != o.Name || c.Namespace != o.Namespace || len(c.Properties) != len(o.Properties) {
		return false
	}
	for i := range c.Properties {
		if c.Properties[i] != o.Properties[i] {
			return false
		}
	}
	return true
}

func (c *Class) String() string {
	return c.Name
}

// Property is a named Value on an Instance. Key marks the property as part of
// the instance identity (a keybinding).
type Property struct {
	Name  string
	Value Value
	Key   bool
}

// Instance represents a CIM instance: class name, namespace, and properties
// in insertion order. The subset marked Key forms the instance identity; an
// Instance carrying only keybindings is an instance name.
type Instance struct {
	ClassName string
	Namespace string

	props []Property
	index map[string]int
}

// NewInstance creates an empty Instance of the given class
func NewInstance(classname, namespace string) *Instance {
	return &Instance{ClassName: classname, Namespace: namespace}
}

func (i *Instance) object() {}

// ObjectClassName returns the class name
func (i *Instance) ObjectClassName() string {
	if i == nil {
		return ""
	}
	return i.ClassName
}

// ObjectNamespace returns the namespace
func (i *Instance) ObjectNamespace() string {
	if i == nil {
		return ""
	}
	return i.Namespace
}

// SetProperty adds or replaces a property, preserving insertion order on
// replacement
func (i *Instance) SetProperty(name string, v Value) *Instance {
	i.set(name, v, false)
	return i
}

// SetKey adds or replaces a property and marks it as a keybinding
func (i *Instance) SetKey(name string, v Value) *Instance {
	i.set(name, v, true)
	return i
}

func (i *Instance) set(name string, v Value, key bool) {
	if i.index == nil {
		i.index = make(map[string]int)
	}
	if idx, ok := i.index[name]; ok {
		i.props[idx].Value = v
		if key {
			i.props[idx].Key = true
		}
		return
	}
	i.index[name] = len(i.props)
	i.props = append(i.props, Property{Name: name, Value: v, Key: key})
}

// Get returns the named property value
func (i *Instance) Get(name string) (Value, bool) {
	if i.index == nil {
		return Value{}, false
	}
	idx, ok := i.index[name]
	if !ok {
		return Value{}, false
	}
	return i.props[idx].Value, true
}

// Properties returns all properties in insertion order
func (i *Instance) Properties() []Property {
	return i.props
}

// Keybindings returns the key properties in insertion order
func (i *Instance) Keybindings() []Property {
	var keys []Property
	for _, p := range i.props {
		if p.Key {
			keys = append(keys, p)
		}
	}
	return keys
}

// HasKeybindings reports whether any property is marked as a keybinding
func (i *Instance) HasKeybindings() bool {
	for _, p := range i.props {
		if p.Key {
			return true
		}
	}
	return false
}

// IsName reports whether the Instance is an instance name: it carries
// keybindings and nothing else
func (i *Instance) IsName() bool {
	if len(i.props) == 0 {
		return false
	}
	for _, p := range i.props {
		if !p.Key {
			return false
		}
	}
	return true
}

// Equal reports structural equality with another Instance
func (i *Instance) Equal(o *Instance) bool {
	if i == nil || o == nil {
		return i == o
	}
	if i.ClassName != o.ClassName || i.Namespace != o.Namespace || len(i.props) != len(o.props) {
		return false
	}
	for idx := range i.props {
		a, b := i.props[idx], o.props[idx]
		if a.Name != b.Name || a.Key != b.Key || !a.Value.Equal(b.Value) {
			return false
		}
	}
	return true
}

// String renders the Instance as its reference string
func (i *Instance) String() string {
	return FormatReference(i)
}

// Response is the decoded result of one WBEM operation. It is constructed by
// the codec and must be treated as read-only by callers.
type Response struct {
	// Method is the operation that produced the payload
	Method string

	// Instances holds decoded objects (classes or instances) in document
	// order. Name-returning operations produce name-only entries.
	Instances []Object

	// Properties holds the flat property set for operations whose payload is
	// a single property list, in document order.
	Properties []Property
}

// PropertyValue returns a named entry from the flat property set
func (r *Response) PropertyValue(name string) (Value, bool) {
	for _, p := range r.Properties {
		if p.Name == name {
			return p.Value, true
		}
	}
	return Value{}, false
}
