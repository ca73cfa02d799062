package realm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	r, err := Parse("frontend")
	require.NoError(t, err)
	assert.Equal(t, Frontend, r)

	r, err = Parse(" Backend ")
	require.NoError(t, err)
	assert.Equal(t, Backend, r)

	_, err = Parse("admin")
	assert.Error(t, err)
}

func TestBackendNeverAutoCreates(t *testing.T) {
	assert.True(t, AutoCreateForbidden(Backend))
	assert.False(t, AutoCreateForbidden(Frontend))

	p := DefaultPolicies().For(Backend)
	p.AutoCreate = true
	assert.False(t, p.CanAutoCreate(), "backend must refuse auto-create even when the flag is forced on")

	f := DefaultPolicies().For(Frontend)
	f.AutoCreate = true
	assert.True(t, f.CanAutoCreate())
}

func TestPoliciesFor(t *testing.T) {
	ps := DefaultPolicies()
	assert.True(t, ps.For(Frontend).RequireLoginFlag)
	assert.False(t, ps.For(Backend).RequireLoginFlag)

	unknown := Policies{}.For(Frontend)
	assert.Equal(t, Frontend, unknown.Realm)
	assert.False(t, unknown.AutoCreate)
	assert.Equal(t, "/", unknown.DefaultFailurePath)
}

func TestPolicyClone(t *testing.T) {
	p := Policy{GroupAllowList: []string{"7"}, AuthParams: map[string]string{"prompt": "login"}}
	c := p.Clone()
	c.GroupAllowList[0] = "9"
	c.AuthParams["prompt"] = "none"

	assert.Equal(t, "7", p.GroupAllowList[0])
	assert.Equal(t, "login", p.AuthParams["prompt"])
}
