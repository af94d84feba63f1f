// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package trie

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSearch_LongestPrefixTieBreak(t *testing.T) {
	tr := New[string]()
	tr.Insert(netip.MustParseAddr("1.0.0.0"), 16, "A")
	tr.Insert(netip.MustParseAddr("1.1.1.0"), 24, "B")
	tr.Insert(netip.MustParseAddr("2.0.0.0"), 8, "C")
	tr.Insert(netip.MustParseAddr("2.0.0.0"), 24, "D")

	cases := []struct {
		addr string
		want string
	}{
		{"1.0.134.168", "A"},
		{"1.1.1.254", "B"},
		{"2.0.1.168", "C"},
		{"2.0.0.168", "D"},
	}

	for _, c := range cases {
		matched, payload := tr.Search(netip.MustParseAddr(c.addr))
		require.True(t, matched, c.addr)
		require.Equal(t, c.want, payload, c.addr)
	}
}

func TestSearch_MatchAllBehavior(t *testing.T) {
	empty := New[struct{}]()
	matched, _ := empty.Search(netip.MustParseAddr("1.0.0.168"))
	require.False(t, matched)

	allMatch := New[struct{}]()
	allMatch.SetMatchAll()
	matched, _ = allMatch.Search(netip.MustParseAddr("1.0.0.168"))
	require.True(t, matched)
	matched, _ = allMatch.Search(netip.MustParseAddr("2.0.0.168"))
	require.True(t, matched)
}

func TestInsert_Idempotence(t *testing.T) {
	tr := New[int]()
	tr.Insert(netip.MustParseAddr("10.0.0.0"), 8, 1)
	tr.Insert(netip.MustParseAddr("10.0.0.0"), 8, 1)
	matched, payload := tr.Search(netip.MustParseAddr("10.1.2.3"))
	require.True(t, matched)
	require.Equal(t, 1, payload)

	tr.Insert(netip.MustParseAddr("10.0.0.0"), 8, 2)
	matched, payload = tr.Search(netip.MustParseAddr("10.1.2.3"))
	require.True(t, matched)
	require.Equal(t, 2, payload)
}

func TestEmpty(t *testing.T) {
	tr := New[int]()
	require.True(t, tr.Empty())
	tr.Insert(netip.MustParseAddr("1.2.3.0"), 24, 7)
	require.False(t, tr.Empty())
}
