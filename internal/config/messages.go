package config

import "fmt"

const (
	errRequiredEnvNotSetFmt  = "required environment variable %s is not set"
	errRequiredForBackendFmt  = "%s must be set for the %s store backend"
)

type messageBuilders struct {
	requiredEnvNotSet  func(string) string
	requiredForBackend func(key, backend string) string
}

func newMessageBuilders() messageBuilders {
	return messageBuilders{
		requiredEnvNotSet: func(key string) string {
			return fmt.Sprintf(errRequiredEnvNotSetFmt, key)
		},
		requiredForBackend: func(key, backend string) string {
			return fmt.Sprintf(errRequiredForBackendFmt, key, backend)
		},
	}
}

var messages = newMessageBuilders()
