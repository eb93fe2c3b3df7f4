package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowList(t *testing.T) {
	list := ParseAllowList(" Ana@Example.com, bob@example.com ,,")

	assert.Equal(t, 2, list.Len())
	assert.Equal(t, []string{"ana@example.com", "bob@example.com"}, list.Emails())

	tests := []struct {
		email string
		want  bool
	}{
		{"ana@example.com", true},
		{"  ANA@EXAMPLE.COM ", true},
		{"bob@example.com", true},
		{"eve@example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, list.Allowed(tt.email), tt.email)
	}
}

func TestEmptyAllowListDeniesEveryone(t *testing.T) {
	var list AllowList
	assert.False(t, list.Allowed("ana@example.com"))
	assert.Zero(t, list.Len())
}
