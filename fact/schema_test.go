package fact_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/factdb/fact"
)

func TestSchema_BindIdent_RejectsConflictingRebind(t *testing.T) {
	s := fact.NewSchema()
	require.NoError(t, s.BindIdent(200, ":person/name"))

	err := s.BindIdent(200, ":person/age")
	assert.Error(t, err)

	err = s.BindIdent(201, ":person/name")
	assert.Error(t, err)

	// Rebinding the same pair again is idempotent, not an error.
	assert.NoError(t, s.BindIdent(200, ":person/name"))
}

func TestSchema_BindIdent_IsABijection(t *testing.T) {
	s := fact.NewSchema()
	require.NoError(t, s.BindIdent(200, ":person/name"))
	require.NoError(t, s.BindIdent(201, ":person/age"))

	ident, ok := s.IdentFor(200)
	require.True(t, ok)
	assert.Equal(t, ":person/name", ident)

	e, ok := s.EntidFor(":person/age")
	require.True(t, ok)
	assert.Equal(t, fact.Entid(201), e)
}

func TestAttribute_Validate(t *testing.T) {
	cases := []struct {
		name    string
		attr    fact.Attribute
		wantErr bool
	}{
		{"plain ref", fact.Attribute{ValueType: fact.ValueTypeRef}, false},
		{"fulltext requires string", fact.Attribute{ValueType: fact.ValueTypeRef, Fulltext: true}, true},
		{"fulltext string ok", fact.Attribute{ValueType: fact.ValueTypeString, Fulltext: true}, false},
		{"unique identity requires index", fact.Attribute{ValueType: fact.ValueTypeString, Unique: fact.UniqueIdentity}, true},
		{"unique identity indexed ok", fact.Attribute{ValueType: fact.ValueTypeString, Unique: fact.UniqueIdentity, Index: true}, false},
		{"unique requires cardinality one", fact.Attribute{ValueType: fact.ValueTypeString, Unique: fact.UniqueValue, Cardinality: fact.CardinalityMany}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.attr.Validate()
			if c.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPartition_Allocate_AdvancesIndexByCount(t *testing.T) {
	p := fact.NewPartition(0, 10)
	lo, hi := p.Allocate(3)
	assert.Equal(t, fact.Entid(10), lo)
	assert.Equal(t, fact.Entid(13), hi)
	assert.Equal(t, fact.Entid(13), p.Index)
}

func TestPartition_SetIndex_RejectsBelowStart(t *testing.T) {
	p := fact.NewPartition(10, 20)
	assert.Error(t, p.SetIndex(5))
	assert.NoError(t, p.SetIndex(15))
}
