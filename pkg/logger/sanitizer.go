package logger

import (
	"regexp"
	"strings"
)

var (
	authHeaderPattern = regexp.MustCompile(`(?i)(authorization)[\s:=]+(bearer\s+)?[^\s,"]+`)
	tokenPattern      = regexp.MustCompile(`(?i)(access_token|token|jwt|bearer)[\s:=]+[^\s,"]+`)
	secretPattern     = regexp.MustCompile(`(?i)(secret|passphrase|private[_-]?key)[\s:=]+[^\s,"]+`)
	emailPattern      = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
)

const redactedPlaceholder = "[REDACTED]"

// SanitizeLogMessage removes credentials from log messages. Upstream error
// bodies and request dumps go through here before they are logged.
func SanitizeLogMessage(message string) string {
	message = authHeaderPattern.ReplaceAllString(message, "${1}="+redactedPlaceholder)
	message = tokenPattern.ReplaceAllString(message, "${1}="+redactedPlaceholder)
	message = secretPattern.ReplaceAllString(message, "${1}="+redactedPlaceholder)
	return message
}

// MaskEmails replaces the local part of every e-mail address in message,
// keeping the first character and the domain.
func MaskEmails(message string) string {
	return emailPattern.ReplaceAllStringFunc(message, maskEmail)
}

func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return redactedPlaceholder
	}
	return email[:1] + "***" + email[at:]
}
