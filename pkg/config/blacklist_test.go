package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePropertyBlacklist(t *testing.T) {
	blacklist, err := ParsePropertyBlacklist("reader=ssn,salary;editor=ssn")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"reader": {"ssn", "salary"},
		"editor": {"ssn"},
	}, blacklist)
}

func TestParsePropertyBlacklistEmpty(t *testing.T) {
	blacklist, err := ParsePropertyBlacklist("")
	require.NoError(t, err)
	assert.Empty(t, blacklist)

	blacklist, err = ParsePropertyBlacklist("  ")
	require.NoError(t, err)
	assert.Empty(t, blacklist)
}

func TestParsePropertyBlacklistTrimsWhitespace(t *testing.T) {
	blacklist, err := ParsePropertyBlacklist(" reader = ssn , salary ; ")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"reader": {"ssn", "salary"}}, blacklist)
}

func TestParsePropertyBlacklistMalformed(t *testing.T) {
	for _, s := range []string{"reader", "=ssn", "reader=", "reader=,"} {
		_, err := ParsePropertyBlacklist(s)
		assert.Error(t, err, "input %q", s)
	}
}

func TestParsePropertyBlacklistMergesRepeatedRoles(t *testing.T) {
	blacklist, err := ParsePropertyBlacklist("reader=ssn;reader=salary")
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"reader": {"ssn", "salary"}}, blacklist)
}
