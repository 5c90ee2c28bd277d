package shared

import (
	"testing"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bearer", "Bearer abc123def456ghi789jkl0", "Bearer [REDACTED]"},
		{"api key", "api_key=abcdef1234567890abcdef", "api_key[REDACTED]"},
		{"token uuid", "token: 0f8fad5b-d9cb-469f-a165-70867728950e", "token[REDACTED]"},
		{"email", "created user demo@example.com", "created user d***@example.com"},
		{"plain", "this is a normal log message", "this is a normal log message"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Redact(tt.input); got != tt.want {
				t.Fatalf("Redact(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestMaskEmail_Multiple(t *testing.T) {
	got := MaskEmail("a@b.io and taro.yamada@example.co.jp")
	if got != "a***@b.io and t***@example.co.jp" {
		t.Fatalf("unexpected mask %q", got)
	}
}

func TestRedactEnvValue_Sensitive(t *testing.T) {
	cases := []struct {
		key, value string
		expect     string
	}{
		{"GOCRAFT_API_KEY", "some-secret", "[REDACTED]"},
		{"auth_token", "abc123", "[REDACTED]"},
		{"password", "s3cret", "[REDACTED]"},
		{"GOCRAFT_BIND_ADDR", "127.0.0.1:8001", "127.0.0.1:8001"},
		{"GOCRAFT_LOG_LEVEL", "info", "info"},
	}
	for _, tc := range cases {
		got := RedactEnvValue(tc.key, tc.value)
		if got != tc.expect {
			t.Errorf("RedactEnvValue(%q, %q) = %q, want %q", tc.key, tc.value, got, tc.expect)
		}
	}
}
