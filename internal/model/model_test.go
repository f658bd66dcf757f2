package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDepPreservesInsertionOrder(t *testing.T) {
	p := NewPkg("www/nginx", "1.0")
	p.AddDep(DepEdge{Origin: "security/openssl", Name: "openssl"})
	p.AddDep(DepEdge{Origin: "devel/pcre2", Name: "pcre2"})
	p.AddDep(DepEdge{Origin: "security/openssl", Name: "openssl"}) // re-add, no reorder

	assert.Equal(t, []string{"security/openssl", "devel/pcre2"}, p.DepOrder)
	assert.Len(t, p.Deps, 2)
}

func TestStripDepRemovesFromOrderAndMap(t *testing.T) {
	p := NewPkg("www/nginx", "1.0")
	p.AddDep(DepEdge{Origin: "security/openssl"})
	p.AddDep(DepEdge{Origin: "devel/pcre2"})

	p.StripDep("security/openssl")

	_, ok := p.Deps["security/openssl"]
	assert.False(t, ok)
	assert.Equal(t, []string{"devel/pcre2"}, p.DepOrder)
}

func TestOrderedOptionsSerializePreservesInsertionOrder(t *testing.T) {
	o := NewOrderedOptions()
	o.Set("SSL", "on")
	o.Set("HTTP2", "on")
	o.Set("SSL", "off") // value updates, position does not move

	require.Equal(t, 2, o.Len())
	assert.Equal(t, "SSL=off HTTP2=on ", o.Serialize())
}

func TestOrderedOptionsKeysAndValue(t *testing.T) {
	o := NewOrderedOptions()
	o.Set("SSL", "on")
	o.Set("HTTP2", "on")

	assert.Equal(t, []string{"SSL", "HTTP2"}, o.Keys())
	assert.Equal(t, "on", o.Value("SSL"))
	assert.Equal(t, "", o.Value("missing"))
}

func TestOrderedStringsAddIsIdempotent(t *testing.T) {
	s := NewOrderedStrings()
	s.Add("libssl.so.3")
	s.Add("libcrypto.so.3")
	s.Add("libssl.so.3")

	assert.Equal(t, []string{"libssl.so.3", "libcrypto.so.3"}, s.Items())
}

func TestLoadFieldHas(t *testing.T) {
	f := FieldBasic | FieldDeps
	assert.True(t, f.Has(FieldBasic))
	assert.True(t, f.Has(FieldDeps))
	assert.True(t, f.Has(FieldBasic|FieldDeps))
	assert.False(t, f.Has(FieldOptions))
}
