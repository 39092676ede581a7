package errors

import (
	"strings"
	"testing"
)

func TestValidateFunctionName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "main", false},
		{"valid mangled", "_ZN4llvm5Value4dumpEv", false},
		{"valid with dot suffix", "foo.cold", false},
		{"valid with dollar", "foo$bar", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 5000), true},
		{"space", "foo bar", true},
		{"tab", "foo\tbar", true},
		{"newline", "foo\nbar", true},
		{"null byte", "foo\x00bar", true},
		{"directive prefix", "!foo", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFunctionName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFunctionName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidProfile) {
				t.Errorf("ValidateFunctionName(%q) code = %v, want %v", tt.input, GetCode(err), ErrCodeInvalidProfile)
			}
		})
	}
}

func TestValidateURI(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		schemes []string
		wantErr bool
	}{
		{"redis", "redis://localhost:6379/0", []string{"redis", "rediss"}, false},
		{"rediss", "rediss://cache:6380", []string{"redis", "rediss"}, false},
		{"mongo", "mongodb://localhost:27017", []string{"mongodb", "mongodb+srv"}, false},
		{"mongo srv", "mongodb+srv://cluster0.example.net", []string{"mongodb", "mongodb+srv"}, false},

		{"empty", "", []string{"redis"}, true},
		{"wrong scheme", "http://localhost", []string{"redis"}, true},
		{"no scheme", "localhost:6379", []string{"redis"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURI(tt.input, tt.schemes...)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURI(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
