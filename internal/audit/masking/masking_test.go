package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskSecretKeepsKeyIDPrefix(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"st_live_key_2ABC_deadbeefcafe", "st_live_key_2ABC_****cafe"},
		{"  padded_secretvalue  ", "padded_****alue"},
		{"plainsecret", "****cret"},
		{"key_ab", "key_****"},
		{"abc", "****"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MaskSecret(tc.in), "input %q", tc.in)
	}
}

func TestMaskSecretIdempotent(t *testing.T) {
	once := MaskSecret("st_live_key_2ABC_deadbeefcafe")
	assert.Equal(t, once, MaskSecret(once))
	assert.Equal(t, "****cret", MaskSecret("****cret"))
}

func TestSanitizeMasksSecretBearingKeysOnly(t *testing.T) {
	out := Sanitize(map[string]any{
		"name":         "ci deployer",
		"rotated_from": "key_OLD",
		"masked_token": "st_live_key_2ABC_deadbeefcafe",
		"request": map[string]any{
			"path":  "/api/service-tokens",
			"token": "raw_tok_abcdef123456",
		},
		"credentials": map[string]any{
			"api_secret": "s3cr3tvalue",
			"region":     "us-east-1",
		},
	})
	require.NotNil(t, out)

	assert.Equal(t, "ci deployer", out["name"])
	assert.Equal(t, "key_OLD", out["rotated_from"])
	assert.Equal(t, "st_live_key_2ABC_****cafe", out["masked_token"])

	request, ok := out["request"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/api/service-tokens", request["path"])
	assert.Equal(t, "raw_tok_****3456", request["token"])

	// Everything under a secret-bearing key is masked, nested or not.
	creds, ok := out["credentials"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "****alue", creds["api_secret"])
	assert.Equal(t, "****st-1", creds["region"])
}

func TestSanitizeAlreadyMaskedSurvives(t *testing.T) {
	in := map[string]any{"masked_token": "st_live_key_2ABC_****cafe"}
	assert.Equal(t, in, Sanitize(in))
}

func TestSanitizeEmpty(t *testing.T) {
	assert.Nil(t, Sanitize(nil))
	assert.Nil(t, Sanitize(map[string]any{}))
	assert.Nil(t, Sanitize(map[string]any{"  ": "value"}))
}
