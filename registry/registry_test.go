package registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/factdb/fact"
	"github.com/warp/factdb/registry"
)

type fakeProvider struct {
	closed bool
}

func (f *fakeProvider) LookupUnique(context.Context, fact.Entid, fact.TypedValue) (fact.Entid, bool, error) {
	return 0, false, nil
}
func (f *fakeProvider) ScanEAV(context.Context, fact.Entid, fact.Entid) ([]fact.Datom, error) { return nil, nil }
func (f *fakeProvider) ScanTx(context.Context, fact.Entid) ([]fact.Datom, error)               { return nil, nil }
func (f *fakeProvider) Append(context.Context, string, []fact.Datom) error                      { return nil }
func (f *fakeProvider) TimelineUpdate(context.Context, string, string, fact.Entid, fact.Entid, []fact.Datom) error {
	return nil
}
func (f *fakeProvider) DeleteTx(context.Context, string, fact.Entid) error { return nil }
func (f *fakeProvider) Close() error                                      { f.closed = true; return nil }

func TestRegistry_SecondOpenSamePathSharesOneProvider(t *testing.T) {
	reg := registry.New()
	opens := 0
	opener := func(string) (fact.IndexProvider, error) {
		opens++
		return &fakeProvider{}, nil
	}

	h1, err := reg.Open("/tmp/does-not-need-to-exist.db", opener)
	require.NoError(t, err)
	h2, err := reg.Open("/tmp/does-not-need-to-exist.db", opener)
	require.NoError(t, err)

	assert.Equal(t, 1, opens)
	assert.Same(t, h1.Provider, h2.Provider)
	assert.Equal(t, 2, reg.RefCount(h1.Path()))
}

func TestRegistry_CloseOnlyReleasesProviderOnLastClose(t *testing.T) {
	reg := registry.New()
	var provider *fakeProvider
	opener := func(string) (fact.IndexProvider, error) {
		provider = &fakeProvider{}
		return provider, nil
	}

	h1, err := reg.Open(":memory:", opener)
	require.NoError(t, err)
	h2, err := reg.Open(":memory:", opener)
	require.NoError(t, err)

	require.NoError(t, h1.Close(context.Background()))
	assert.False(t, provider.closed)
	assert.Equal(t, 1, reg.RefCount(":memory:"))

	require.NoError(t, h2.Close(context.Background()))
	assert.True(t, provider.closed)
	assert.Equal(t, 0, reg.RefCount(":memory:"))
}

func TestRegistry_DoubleCloseReturnsStoreNotFound(t *testing.T) {
	reg := registry.New()
	h, err := reg.Open(":memory:", func(string) (fact.IndexProvider, error) { return &fakeProvider{}, nil })
	require.NoError(t, err)

	require.NoError(t, h.Close(context.Background()))
	err = h.Close(context.Background())
	assert.True(t, errors.Is(err, fact.ErrStoreNotFound))
}
