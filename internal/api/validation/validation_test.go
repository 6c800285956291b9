package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidEmail(t *testing.T) {
	valid := []string{"user@example.com", "first.last+tag@sub.domain.org"}
	for _, e := range valid {
		assert.True(t, IsValidEmail(e), e)
	}

	invalid := []string{"", "not-an-email", "@example.com", "user@", "user@host"}
	for _, e := range invalid {
		assert.False(t, IsValidEmail(e), e)
	}
}

func TestIsValidUUID(t *testing.T) {
	assert.True(t, IsValidUUID("6a0f5f2e-9c7d-4b63-8f2a-1d2e3f4a5b6c"))
	assert.False(t, IsValidUUID("6a0f5f2e"))
	assert.False(t, IsValidUUID(""))
}

func TestIsValidSlug(t *testing.T) {
	assert.True(t, IsValidSlug("acme-academy"))
	assert.True(t, IsValidSlug("org42"))
	assert.False(t, IsValidSlug("Acme"))
	assert.False(t, IsValidSlug("-leading"))
	assert.False(t, IsValidSlug("a"))
}

func TestIsValidPassword(t *testing.T) {
	ok, _ := IsValidPassword("Passw0rd")
	assert.True(t, ok)

	cases := map[string]string{
		"short1A":   "at least 8",
		"alllower1": "uppercase",
		"ALLUPPER1": "lowercase",
		"NoNumbers": "number",
	}
	for pw, want := range cases {
		ok, msg := IsValidPassword(pw)
		assert.False(t, ok, pw)
		assert.Contains(t, msg, want)
	}
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello world", SanitizeString("hello\x00 world"))
	assert.Equal(t, "line1\nline2", SanitizeString("line1\nline2"))
}
