package macro

import (
	"path/filepath"
	"testing"

	"handbook/internal/engine/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseJS(t *testing.T, code string) *parser.Module {
	t.Helper()
	loader, err := parser.NewGrammarLoader()
	require.NoError(t, err)
	m, err := parser.NewParser(loader).Parse(filepath.Join(t.TempDir(), "mod.js"), []byte(code))
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestTrackBindings(t *testing.T) {
	cases := []struct {
		name     string
		code     string
		expected Bindings
	}{
		{
			name:     "Named",
			code:     `import { source } from '@handbook/source';`,
			expected: Bindings{{LocalName: "source", Kind: BindingNamed}},
		},
		{
			name:     "StringNameAliased",
			code:     `import { "source" as s } from '@handbook/source';`,
			expected: Bindings{{LocalName: "s", Kind: BindingNamed}},
		},
		{
			name:     "Namespace",
			code:     `import * as hb from "@handbook/source";`,
			expected: Bindings{{LocalName: "hb", Kind: BindingNamespace}},
		},
		{
			name: "DefaultPlusNamed",
			code: `import hb, { source as s } from '@handbook/source';`,
			expected: Bindings{
				{LocalName: "hb", Kind: BindingDefault},
				{LocalName: "s", Kind: BindingNamed},
			},
		},
		{
			name:     "SideEffectOnly",
			code:     `import '@handbook/source';`,
			expected: nil,
		},
		{
			name:     "OtherPackage",
			code:     `import { source } from '@handbook/components';`,
			expected: nil,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			m := parseJS(t, tc.code)
			assert.Equal(t, tc.expected, TrackBindings(m, DefaultPackage, DefaultExport))
		})
	}
}

func TestBindingsLookup(t *testing.T) {
	b := Bindings{
		{LocalName: "s", Kind: BindingNamed},
		{LocalName: "ns", Kind: BindingNamespace},
		{LocalName: "hb", Kind: BindingDefault},
	}

	assert.True(t, b.Direct("s"))
	assert.True(t, b.Direct("hb"))
	assert.False(t, b.Direct("ns"))

	assert.True(t, b.Member("ns"))
	assert.True(t, b.Member("hb"))
	assert.False(t, b.Member("s"))
	assert.False(t, b.Member("missing"))
}

func TestMatchCalls_DocumentOrderAndShapes(t *testing.T) {
	m := parseJS(t, `import hb from '@handbook/source';
hb.source(hb(require('./inner')));
hb?.source(require('./a'));
hb.source?.(require('./a'));
hb['source'](require('./a'));
other.source(require('./a'));
hb.source` + "`tpl`" + `;
`)
	bindings := TrackBindings(m, DefaultPackage, DefaultExport)
	sites := MatchCalls(m, bindings, DefaultExport)

	require.Len(t, sites, 2)
	assert.Equal(t, "hb.source", sites[0].Callee)
	assert.Equal(t, CalleeMember, sites[0].Kind)
	assert.Equal(t, "hb", sites[1].Callee)
	assert.Equal(t, CalleeDirect, sites[1].Kind)

	assert.Equal(t, LoadUnrecognized, Classify(m, sites[0].Args).Load)
	ref := Classify(m, sites[1].Args)
	assert.Equal(t, LoadEager, ref.Load)
	assert.Equal(t, "./inner", ref.Specifier.Value)
}

func TestMatchCalls_NoBindings(t *testing.T) {
	m := parseJS(t, `source(require('./a'));`)
	assert.Empty(t, MatchCalls(m, nil, DefaultExport))
}
