package wbem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deejross/go-wbem/cim"
	"github.com/deejross/go-wbem/cimxml"
)

// stubTransport records the request and returns a canned response
type stubTransport struct {
	called bool
	hdrs   cimxml.Headers
	body   []byte
	resp   []byte
	err    error
}

func (s *stubTransport) Send(ctx context.Context, hdrs cimxml.Headers, body []byte) ([]byte, error) {
	s.called = true
	s.hdrs = hdrs
	s.body = body
	return s.resp, s.err
}

func responseDoc(inner string) []byte {
	return []byte(`<?xml version="1.0" encoding="utf-8"?>` +
		`<CIM CIMVERSION="2.0" DTDVERSION="2.0">` +
		`<MESSAGE ID="1001" PROTOCOLVERSION="1.0">` +
		`<SIMPLERSP><IMETHODRESPONSE NAME="Test">` + inner + `</IMETHODRESPONSE></SIMPLERSP>` +
		`</MESSAGE></CIM>`)
}

func TestClientEnumerateInstanceNames(t *testing.T) {
	stub := &stubTransport{resp: responseDoc(`<IRETURNVALUE>` +
		`<INSTANCENAME CLASSNAME="Disk">` +
		`<KEYBINDING NAME="DeviceID"><KEYVALUE VALUETYPE="string">sda</KEYVALUE></KEYBINDING>` +
		`</INSTANCENAME>` +
		`</IRETURNVALUE>`)}
	client := New("server1", WithTransport(stub))

	resp, err := client.EnumerateInstanceNames(context.Background(), client.Class("Disk"))
	require.NoError(t, err)

	assert.Equal(t, "EnumerateInstanceNames", stub.hdrs.CIMMethod)
	assert.Equal(t, "MethodCall", stub.hdrs.CIMOperation)
	assert.Equal(t, "root/cimv2", stub.hdrs.CIMObject)
	assert.Contains(t, string(stub.body), `<IMETHODCALL NAME="EnumerateInstanceNames">`)

	require.Len(t, resp.Instances, 1)
	inst := resp.Instances[0].(*cim.Instance)
	assert.Equal(t, "Disk", inst.ClassName)
	assert.Equal(t, "root/cimv2", inst.Namespace)
}

func TestClientGetInstanceFlatProperties(t *testing.T) {
	stub := &stubTransport{resp: responseDoc(`<IRETURNVALUE>` +
		`<INSTANCE CLASSNAME="OperatingSystem">` +
		`<PROPERTY NAME="Version" TYPE="string"><VALUE>6.1</VALUE></PROPERTY>` +
		`</INSTANCE>` +
		`</IRETURNVALUE>`)}
	client := New("server1", WithTransport(stub))

	target, err := client.Instance("OperatingSystem", cim.Property{Name: "Name", Value: cim.String("Linux"), Key: true})
	require.NoError(t, err)

	resp, err := client.GetInstance(context.Background(), target)
	require.NoError(t, err)

	v, ok := resp.PropertyValue("Version")
	require.True(t, ok)
	assert.Equal(t, "6.1", v.Str())
}

func TestClientFaultPassthrough(t *testing.T) {
	stub := &stubTransport{resp: responseDoc(`<ERROR CODE="5" DESCRIPTION="Invalid Class"/>`)}
	client := New("server1", WithTransport(stub))

	_, err := client.EnumerateInstances(context.Background(), client.Class("NoSuchClass"))
	require.Error(t, err)
	assert.True(t, cim.IsInvalidClass(err))
}

// Shape validation must reject bad targets before any request is sent
func TestClientArgumentValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		call func(c *Client) error
	}{
		{"GetClass nil", func(c *Client) error {
			_, err := c.GetClass(ctx, nil)
			return err
		}},
		{"GetClass empty name", func(c *Client) error {
			_, err := c.GetClass(ctx, c.Class(""))
			return err
		}},
		{"GetClass instance target", func(c *Client) error {
			_, err := c.GetClass(ctx, cim.NewInstance("Disk", ""))
			return err
		}},
		{"GetInstance class target", func(c *Client) error {
			_, err := c.GetInstance(ctx, c.Class("Disk"))
			return err
		}},
		{"GetInstance no keybindings", func(c *Client) error {
			_, err := c.GetInstance(ctx, cim.NewInstance("Disk", ""))
			return err
		}},
		{"EnumerateInstances nil", func(c *Client) error {
			_, err := c.EnumerateInstances(ctx, nil)
			return err
		}},
		{"EnumerateInstances instance target", func(c *Client) error {
			_, err := c.EnumerateInstances(ctx, cim.NewInstance("Disk", ""))
			return err
		}},
		{"EnumerateInstanceNames empty name", func(c *Client) error {
			_, err := c.EnumerateInstanceNames(ctx, c.Class(""))
			return err
		}},
		{"EnumerateClasses instance target", func(c *Client) error {
			_, err := c.EnumerateClasses(ctx, cim.NewInstance("Disk", ""))
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubTransport{}
			client := New("server1", WithTransport(stub))

			err := tt.call(client)
			require.Error(t, err)

			var aerr *cim.ArgumentError
			assert.ErrorAs(t, err, &aerr)
			assert.False(t, stub.called, "transport must not be contacted on invalid arguments")
		})
	}
}

func TestClientEnumerateAllClasses(t *testing.T) {
	stub := &stubTransport{resp: responseDoc(`<IRETURNVALUE><CLASSNAME NAME="Disk"/></IRETURNVALUE>`)}
	client := New("server1", WithTransport(stub))

	// Nil target and empty-name Class both mean the whole namespace
	_, err := client.EnumerateClassNames(context.Background(), nil)
	require.NoError(t, err)
	assert.NotContains(t, string(stub.body), "IPARAMVALUE")

	_, err = client.EnumerateClassNames(context.Background(), &cim.Class{})
	require.NoError(t, err)
	assert.NotContains(t, string(stub.body), "IPARAMVALUE")
}

func TestClientNamespaceOption(t *testing.T) {
	stub := &stubTransport{resp: responseDoc(`<IRETURNVALUE><CLASSNAME NAME="Disk"/></IRETURNVALUE>`)}
	client := New("server1", WithTransport(stub), WithNamespace("root/interop"))

	resp, err := client.EnumerateClassNames(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "root/interop", stub.hdrs.CIMObject)
	assert.Equal(t, "root/interop", resp.Instances[0].ObjectNamespace())
}

func TestClientInstanceFactory(t *testing.T) {
	client := New("server1", WithTransport(&stubTransport{}))

	t.Run("class name plus keybindings", func(t *testing.T) {
		inst, err := client.Instance("Disk", cim.Property{Name: "DeviceID", Value: cim.String("sda"), Key: true})
		require.NoError(t, err)
		assert.Equal(t, "Disk", inst.ClassName)
		assert.Equal(t, "root/cimv2", inst.Namespace)
		assert.True(t, inst.HasKeybindings())
	})

	t.Run("reference string", func(t *testing.T) {
		inst, err := client.Instance("$cn=Disk;DeviceID=sda")
		require.NoError(t, err)
		assert.Equal(t, "Disk", inst.ClassName)
		assert.Equal(t, "root/cimv2", inst.Namespace, "default namespace filled in")
		v, ok := inst.Get("DeviceID")
		require.True(t, ok)
		assert.Equal(t, "sda", v.Str())
	})

	t.Run("reference string with keybindings rejected", func(t *testing.T) {
		_, err := client.Instance("$cn=Disk", cim.Property{Name: "DeviceID", Value: cim.String("sda"), Key: true})
		require.Error(t, err)
		var aerr *cim.ArgumentError
		assert.ErrorAs(t, err, &aerr)
	})

	t.Run("malformed reference string", func(t *testing.T) {
		_, err := client.Instance("$cn=Disk;bogus")
		require.Error(t, err)
		var perr *cim.ParseError
		assert.ErrorAs(t, err, &perr)
	})
}

func TestClientShortcuts(t *testing.T) {
	client := New("server1",
		WithTransport(&stubTransport{}),
		WithShortcuts(cim.Shortcuts{"CIM_OperatingSystem": "os"}))

	inst, err := client.Instance("$cn=os;Name=Linux")
	require.NoError(t, err)
	assert.Equal(t, "CIM_OperatingSystem", inst.ClassName)
}

func TestClientTransportErrorPassthrough(t *testing.T) {
	wantErr := assert.AnError
	stub := &stubTransport{err: wantErr}
	client := New("server1", WithTransport(stub))

	_, err := client.GetClass(context.Background(), client.Class("Disk"))
	assert.ErrorIs(t, err, wantErr)
}
