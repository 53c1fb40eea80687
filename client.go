// Package wbem is a client for the WBEM management protocol: it queries a
// remote CIM server for class definitions and object instances over HTTP
// using the CIM-XML wire encoding.
//
// The client orchestrates the cimxml codec and an injected Transport; it
// performs at most one network round trip per operation, never retries, and
// assumes single-threaded use per Client (use one Client per goroutine or
// external locking).
package wbem

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/deejross/go-wbem/cim"
	"github.com/deejross/go-wbem/cimxml"
	"github.com/deejross/go-wbem/transport"
)

// Transport is the capability the client sends requests through. The bundled
// HTTP implementation lives in the transport package; tests inject stubs.
type Transport interface {
	Send(ctx context.Context, hdrs cimxml.Headers, body []byte) ([]byte, error)
}

// Client issues WBEM operations against one server. Configuration is fixed
// at construction; operation calls do not mutate client state.
type Client struct {
	hostname  string
	port      int
	tls       bool
	username  string
	password  string
	namespace string
	debug     bool
	shortcuts cim.Shortcuts
	transport Transport
	log       *logrus.Logger
}

// Option configures a Client at construction
type Option func(*Client)

// WithPort overrides the default port 80
func WithPort(port int) Option {
	return func(c *Client) {
		c.port = port
	}
}

// WithTLS connects over https
func WithTLS() Option {
	return func(c *Client) {
		c.tls = true
	}
}

// WithCredentials sets Basic authentication credentials
func WithCredentials(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithNamespace overrides the default namespace root/cimv2
func WithNamespace(namespace string) Option {
	return func(c *Client) {
		c.namespace = namespace
	}
}

// WithDebug makes the transport retain and log raw request/response text
func WithDebug() Option {
	return func(c *Client) {
		c.debug = true
	}
}

// WithShortcuts installs a class name alias table used by the reference
// grammar (full name to short alias)
func WithShortcuts(sc cim.Shortcuts) Option {
	return func(c *Client) {
		c.shortcuts = sc
	}
}

// WithTransport injects a custom transport, replacing the HTTP default
func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithLogger injects a logger; defaults to the logrus standard logger
func WithLogger(log *logrus.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New creates a Client for the given host
func New(hostname string, opts ...Option) *Client {
	c := &Client{
		hostname:  hostname,
		port:      80,
		namespace: cim.DefaultNamespace,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		topts := []transport.Option{
			transport.WithPort(c.port),
			transport.WithLogger(c.log),
		}
		if c.tls {
			topts = append(topts, transport.WithTLS())
		}
		if c.username != "" && c.password != "" {
			topts = append(topts, transport.WithCredentials(c.username, c.password))
		}
		if c.debug {
			topts = append(topts, transport.WithDebug())
		}
		c.transport = transport.NewHTTP(c.hostname, topts...)
	}

	return c
}

// Namespace returns the client's default namespace
func (c *Client) Namespace() string {
	return c.namespace
}

// Class builds a Class target in the client's default namespace. This is a
// pure factory; it does not contact the server.
func (c *Client) Class(name string) *cim.Class {
	return cim.NewClass(name, c.namespace)
}

// Instance builds an Instance target. nameOrRef is either a class name, in
// which case the given keybindings form the instance identity, or a
// serialized reference string ($cn=...;...), in which case keybindings must
// not be supplied. Like Class, this is a pure factory.
func (c *Client) Instance(nameOrRef string, keybindings ...cim.Property) (*cim.Instance, error) {
	if strings.HasPrefix(nameOrRef, "$cn=") || strings.HasPrefix(nameOrRef, "classname=") {
		if len(keybindings) > 0 {
			return nil, &cim.ArgumentError{Op: "Instance", Reason: "keybindings cannot be combined with a reference string"}
		}
		obj, err := cim.ParseReferenceWith(nameOrRef, c.shortcuts)
		if err != nil {
			return nil, err
		}
		inst, ok := obj.(*cim.Instance)
		if !ok {
			cls := obj.(*cim.Class)
			inst = cim.NewInstance(cls.Name, cls.Namespace)
		}
		if inst.Namespace == "" {
			inst.Namespace = c.namespace
		}
		return inst, nil
	}

	inst := cim.NewInstance(nameOrRef, c.namespace)
	for _, kb := range keybindings {
		inst.SetKey(kb.Name, kb.Value)
	}
	return inst, nil
}

// GetClass retrieves one class definition. The target must be a Class with a
// non-empty name.
func (c *Client) GetClass(ctx context.Context, target cim.Object) (*cim.Response, error) {
	cls, ok := target.(*cim.Class)
	if !ok || cls == nil || cls.Name == "" {
		return nil, &cim.ArgumentError{Op: cimxml.GetClass, Reason: "target must be a Class with a name"}
	}
	return c.call(ctx, cimxml.GetClass, cls)
}

// EnumerateClasses retrieves class definitions. A nil target or a Class with
// an empty name enumerates every class in the namespace.
func (c *Client) EnumerateClasses(ctx context.Context, target cim.Object) (*cim.Response, error) {
	cls, err := classOrNil(cimxml.EnumerateClasses, target)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, cimxml.EnumerateClasses, cls)
}

// EnumerateClassNames retrieves class names only. A nil target enumerates
// every class in the namespace.
func (c *Client) EnumerateClassNames(ctx context.Context, target cim.Object) (*cim.Response, error) {
	cls, err := classOrNil(cimxml.EnumerateClassNames, target)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, cimxml.EnumerateClassNames, cls)
}

// GetInstance retrieves one instance. The target must be an Instance with at
// least one keybinding.
func (c *Client) GetInstance(ctx context.Context, target cim.Object) (*cim.Response, error) {
	inst, ok := target.(*cim.Instance)
	if !ok || inst == nil {
		return nil, &cim.ArgumentError{Op: cimxml.GetInstance, Reason: "target must be an Instance"}
	}
	if !inst.HasKeybindings() {
		return nil, &cim.ArgumentError{Op: cimxml.GetInstance, Reason: "target Instance has no keybindings"}
	}
	return c.call(ctx, cimxml.GetInstance, inst)
}

// EnumerateInstances retrieves all instances of a class. The target must be
// a Class.
func (c *Client) EnumerateInstances(ctx context.Context, target cim.Object) (*cim.Response, error) {
	cls, err := classTarget(cimxml.EnumerateInstances, target)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, cimxml.EnumerateInstances, cls)
}

// EnumerateInstanceNames retrieves the instance names of a class. The target
// must be a Class.
func (c *Client) EnumerateInstanceNames(ctx context.Context, target cim.Object) (*cim.Response, error) {
	cls, err := classTarget(cimxml.EnumerateInstanceNames, target)
	if err != nil {
		return nil, err
	}
	return c.call(ctx, cimxml.EnumerateInstanceNames, cls)
}

// call runs the encode, send, decode pipeline for one operation
func (c *Client) call(ctx context.Context, method string, target cim.Object) (*cim.Response, error) {
	hdrs, body, err := cimxml.EncodeRequest(method, target, cimxml.Config{Namespace: c.namespace})
	if err != nil {
		return nil, err
	}

	raw, err := c.transport.Send(ctx, hdrs, body)
	if err != nil {
		return nil, err
	}

	namespace := c.namespace
	if target != nil && target.ObjectNamespace() != "" {
		namespace = target.ObjectNamespace()
	}
	return cimxml.DecodeResponse(method, namespace, raw)
}

// classTarget requires the target to be a Class with a name
func classTarget(op string, target cim.Object) (*cim.Class, error) {
	cls, ok := target.(*cim.Class)
	if !ok || cls == nil || cls.Name == "" {
		return nil, &cim.ArgumentError{Op: op, Reason: fmt.Sprintf("target must be a Class, got %T", target)}
	}
	return cls, nil
}

// classOrNil allows a nil target (enumerate everything) but rejects
// instances. The nil result is an untyped nil so downstream nil checks hold.
func classOrNil(op string, target cim.Object) (cim.Object, error) {
	if target == nil {
		return nil, nil
	}
	cls, ok := target.(*cim.Class)
	if !ok {
		return nil, &cim.ArgumentError{Op: op, Reason: fmt.Sprintf("target must be a Class or nil, got %T", target)}
	}
	if cls == nil || cls.Name == "" {
		return nil, nil
	}
	return cls, nil
}
