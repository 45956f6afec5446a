package docsystem

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/domain"
)

func TestValidateFolderName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"Invoices", "Invoices", false},
		{"  Facturas 2024 ", "Facturas 2024", false},
		{"ñandú", "ñandú", false},
		{"", "", true},
		{"   ", "", true},
		{"a/b", "", true},
		{".", "", true},
		{"..", "", true},
		{"tab\there", "", true},
		{strings.Repeat("x", 256), "", true},
		{strings.Repeat("é", 255), strings.Repeat("é", 255), false},
	}

	for _, tt := range tests {
		got, err := ValidateFolderName(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, domain.ErrValidation, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("id", uuid.NewString()))
	assert.ErrorIs(t, ValidateID("id", ""), domain.ErrValidation)
	assert.ErrorIs(t, ValidateID("id", "123"), domain.ErrValidation)
}

func TestNormalizeVirtualPath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"/Docs", "/Docs", false},
		{"/Docs/Invoices/", "/Docs/Invoices", false},
		{" /Docs ", "/Docs", false},
		{"Docs", "", true},
		{"/", "", true},
		{"", "", true},
		{"/Docs//Invoices", "", true},
		{"/" + strings.Repeat("a", 2048), "", true},
	}

	for _, tt := range tests {
		got, err := NormalizeVirtualPath(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, domain.ErrValidation, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}
