package cimxml

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deejross/go-wbem/cim"
)

func TestEncodeRequestGetClass(t *testing.T) {
	hdrs, body, err := EncodeRequest(GetClass, cim.NewClass("OperatingSystem", ""), Config{})
	require.NoError(t, err)

	assert.Equal(t, Headers{
		CIMOperation: "MethodCall",
		CIMMethod:    "GetClass",
		CIMObject:    "root/cimv2",
	}, hdrs)

	want := `<?xml version="1.0" encoding="utf-8"?>` +
		`<CIM CIMVERSION="2.0" DTDVERSION="2.0">` +
		`<MESSAGE ID="1001" PROTOCOLVERSION="1.0">` +
		`<SIMPLEREQ>` +
		`<IMETHODCALL NAME="GetClass">` +
		`<LOCALNAMESPACEPATH><NAMESPACE NAME="root"/><NAMESPACE NAME="cimv2"/></LOCALNAMESPACEPATH>` +
		`<IPARAMVALUE NAME="ClassName"><CLASSNAME NAME="OperatingSystem"/></IPARAMVALUE>` +
		`</IMETHODCALL>` +
		`</SIMPLEREQ>` +
		`</MESSAGE>` +
		`</CIM>`
	assert.Equal(t, want, string(body))
}

func TestEncodeRequestGetInstance(t *testing.T) {
	inst := cim.NewInstance("OperatingSystem", "").SetKey("Foo", cim.String("Bar"))

	hdrs, body, err := EncodeRequest(GetInstance, inst, Config{})
	require.NoError(t, err)

	assert.Equal(t, "GetInstance", hdrs.CIMMethod)
	assert.Equal(t, "root/cimv2", hdrs.CIMObject)

	doc := string(body)
	assert.Equal(t, 1, strings.Count(doc, "<KEYBINDING"), "exactly one keybinding")
	assert.Contains(t, doc, `<IPARAMVALUE NAME="InstanceName">`)
	assert.Contains(t, doc, `<INSTANCENAME CLASSNAME="OperatingSystem">`)
	assert.Contains(t, doc, `<KEYBINDING NAME="Foo"><KEYVALUE VALUETYPE="string">Bar</KEYVALUE></KEYBINDING>`)
}

func TestEncodeRequestDeterministic(t *testing.T) {
	inst := cim.NewInstance("Disk", "").
		SetKey("SystemName", cim.String("host1")).
		SetKey("DeviceID", cim.String("sda"))

	_, first, err := EncodeRequest(GetInstance, inst, Config{})
	require.NoError(t, err)
	_, second, err := EncodeRequest(GetInstance, inst, Config{})
	require.NoError(t, err)

	assert.Equal(t, first, second, "repeated encodes must be byte-identical")

	// Keybindings appear in insertion order
	doc := string(first)
	assert.Less(t, strings.Index(doc, `NAME="SystemName"`), strings.Index(doc, `NAME="DeviceID"`))
}

func TestEncodeRequestNamespace(t *testing.T) {
	tests := []struct {
		name   string
		target cim.Object
		cfg    Config
		want   string
	}{
		{"default", cim.NewClass("Disk", ""), Config{}, "root/cimv2"},
		{"from config", cim.NewClass("Disk", ""), Config{Namespace: "root/interop"}, "root/interop"},
		{"target overrides config", cim.NewClass("Disk", "root/other"), Config{Namespace: "root/interop"}, "root/other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hdrs, body, err := EncodeRequest(GetClass, tt.target, tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, hdrs.CIMObject)

			doc := string(body)
			for _, part := range strings.Split(tt.want, "/") {
				assert.Contains(t, doc, `<NAMESPACE NAME="`+part+`"/>`)
			}
		})
	}
}

func TestEncodeRequestEnumerateAllClasses(t *testing.T) {
	// Nil target means all classes: no IPARAMVALUE at all
	_, body, err := EncodeRequest(EnumerateClassNames, nil, Config{})
	require.NoError(t, err)
	assert.NotContains(t, string(body), "IPARAMVALUE")

	// Same for an empty class target
	_, body, err = EncodeRequest(EnumerateClasses, cim.NewClass("", ""), Config{})
	require.NoError(t, err)
	assert.NotContains(t, string(body), "IPARAMVALUE")
}

func TestEncodeRequestReferenceKeybinding(t *testing.T) {
	system := cim.NewInstance("ComputerSystem", "").SetKey("Name", cim.String("host1"))
	inst := cim.NewInstance("InstalledOS", "").SetKey("System", cim.Reference(system))

	_, body, err := EncodeRequest(GetInstance, inst, Config{})
	require.NoError(t, err)

	doc := string(body)
	assert.Contains(t, doc, `<KEYBINDING NAME="System"><VALUE.REFERENCE>`)
	assert.Contains(t, doc, `<INSTANCENAME CLASSNAME="ComputerSystem">`)
	assert.Contains(t, doc, `<KEYVALUE VALUETYPE="string">host1</KEYVALUE>`)
}

func TestEncodeRequestEscaping(t *testing.T) {
	inst := cim.NewInstance("Disk", "").SetKey("Name", cim.String(`a<b&"c"`))

	_, body, err := EncodeRequest(GetInstance, inst, Config{})
	require.NoError(t, err)

	doc := string(body)
	assert.Contains(t, doc, "a&lt;b&amp;")
	assert.NotContains(t, doc, `>a<b&`)
}

// Operations other than the class enumerations cannot run without a named
// target, and the codec enforces that without relying on caller validation
func TestEncodeRequestMissingTarget(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target cim.Object
	}{
		{"GetClass nil", GetClass, nil},
		{"GetClass empty name", GetClass, cim.NewClass("", "")},
		{"GetInstance nil", GetInstance, nil},
		{"GetInstance typed nil instance", GetInstance, (*cim.Instance)(nil)},
		{"EnumerateInstances nil", EnumerateInstances, nil},
		{"EnumerateInstances empty name", EnumerateInstances, cim.NewClass("", "")},
		{"EnumerateInstanceNames nil", EnumerateInstanceNames, nil},
		{"EnumerateInstanceNames empty name", EnumerateInstanceNames, cim.NewClass("", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := EncodeRequest(tt.method, tt.target, Config{})
			require.Error(t, err)
			var aerr *cim.ArgumentError
			assert.ErrorAs(t, err, &aerr)
		})
	}
}

func TestEncodeRequestErrors(t *testing.T) {
	_, _, err := EncodeRequest("DeleteInstance", nil, Config{})
	require.Error(t, err)
	var aerr *cim.ArgumentError
	assert.ErrorAs(t, err, &aerr)
}

func TestEncodeRequestMessageID(t *testing.T) {
	_, body, err := EncodeRequest(EnumerateClassNames, nil, Config{MessageID: "42"})
	require.NoError(t, err)
	assert.Contains(t, string(body), `<MESSAGE ID="42" PROTOCOLVERSION="1.0">`)
}

func TestIsMethod(t *testing.T) {
	for _, m := range Methods {
		assert.True(t, IsMethod(m), m)
	}
	assert.False(t, IsMethod("CreateInstance"))
	assert.False(t, IsMethod(""))
}
