package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lodestonedb/lodestone-auth/pkg/security"
)

func TestRoleMembers(t *testing.T) {
	r := NewRole("reader", "bob", "alice", "bob")
	assert.Equal(t, []string{"alice", "bob"}, r.Members)
	assert.True(t, r.HasMember("alice"))
	assert.False(t, r.HasMember("carol"))

	grown := r.WithMember("carol")
	assert.True(t, grown.HasMember("carol"))
	assert.False(t, r.HasMember("carol"), "original record must be untouched")

	shrunk := grown.WithoutMember("alice")
	assert.Equal(t, []string{"bob", "carol"}, shrunk.Members)
}

func TestRoleEqual(t *testing.T) {
	a := NewRole("reader", "alice")
	b := NewRole("reader", "alice")
	c := NewRole("reader")

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}

func TestValidateNames(t *testing.T) {
	assert.NoError(t, ValidateUserName("alice_01"))
	assert.NoError(t, ValidateRoleName("custom_role"))

	for _, bad := range []string{"", "with space", "semi;colon", "dash-ed", "colon:ed", "ünïcode"} {
		assert.ErrorIs(t, ValidateUserName(bad), security.ErrInvalidArguments, "user name %q", bad)
		assert.ErrorIs(t, ValidateRoleName(bad), security.ErrInvalidArguments, "role name %q", bad)
	}
}

func TestValidateSnapshot(t *testing.T) {
	users := ListSnapshot[*User]{Values: []*User{NewUser("alice", Credential{})}}

	ok := ListSnapshot[*Role]{Values: []*Role{NewRole("reader", "alice")}}
	assert.NoError(t, ValidateSnapshot(users, ok))

	dangling := ListSnapshot[*Role]{Values: []*Role{NewRole("reader", "alice", "ghost")}}
	err := ValidateSnapshot(users, dangling)
	assert.ErrorIs(t, err, security.ErrInvalidArguments)
	assert.Contains(t, err.Error(), "ghost")
}
