package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeLogMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains string
		absent   string
	}{
		{"authorization header", "Authorization: Bearer eyJhbGciOi.abc", "[REDACTED]", "eyJhbGciOi"},
		{"token field", `upstream said token=abc123 expired`, "token=[REDACTED]", "abc123"},
		{"secret", "STORE_ENCRYPTION_SECRET=hunter2hunter2", "[REDACTED]", "hunter2"},
		{"untouched", "folder Plans: create USER failed", "create USER failed", "[REDACTED]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeLogMessage(tt.input)
			assert.Contains(t, got, tt.contains)
			assert.NotContains(t, got, tt.absent)
		})
	}
}

func TestMaskEmails(t *testing.T) {
	assert.Equal(t, "user a***@x.com skipped", MaskEmails("user alice@x.com skipped"))
	assert.Equal(t, "no address here", MaskEmails("no address here"))
}
