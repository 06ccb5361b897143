package app

import "fmt"

// ConfigError reports a malformed or missing setting discovered while
// assembling services. The setting name uses the dotted key form.
type ConfigError struct {
	Setting string
	Reason  string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %s: %v", e.Setting, e.Reason, e.Err)
	}
	return fmt.Sprintf("config %s: %s", e.Setting, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configErrorf(setting, format string, args ...any) *ConfigError {
	return &ConfigError{Setting: setting, Reason: fmt.Sprintf(format, args...)}
}
