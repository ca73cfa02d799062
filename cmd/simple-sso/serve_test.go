package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tendant/simple-sso/pkg/config"
)

func TestPrintPolicies(t *testing.T) {
	cfg := config.Config{
		BaseURL:   "https://sso.example.com",
		APIPrefix: "/sso",
		Backend:   config.RealmConfig{AutoCreate: true},
	}

	var buf bytes.Buffer
	require.NoError(t, printPolicies(&buf, cfg))

	var views []policyView
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &views))
	require.Len(t, views, 2)

	byRealm := map[string]policyView{}
	for _, v := range views {
		byRealm[v.Realm] = v
	}
	assert.Equal(t, "https://sso.example.com/sso/frontend/callback", byRealm["frontend"].CallbackURL)
	assert.True(t, byRealm["frontend"].RequireLoginFlag)
	assert.False(t, byRealm["backend"].AutoCreate, "backend never provisions accounts")
}
