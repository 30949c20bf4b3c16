package config

import (
	"fmt"
	"net/url"
	"strings"
)

const redacted = "********"

// sensitiveKeys hold values that embed credentials: CRM webhook URLs carry
// their token in the path and a postgres DSN may carry a password.
var sensitiveKeys = map[string]bool{
	"lead.zapier_webhook":  true,
	"lead.hubspot_webhook": true,
	"storage.postgres_dsn": true,
}

// KeySection returns the TOML section of a dotted key, e.g. "careplan" for
// "careplan.mode".
func KeySection(key string) string {
	section, _, _ := strings.Cut(key, ".")
	return section
}

// Sections returns the TOML sections in ValidConfigKeys order.
func Sections() []string {
	var out []string
	seen := map[string]bool{}
	for _, k := range ValidConfigKeys() {
		s := KeySection(k)
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// DefaultConfigValue returns the value key takes when config.toml does not
// set it.
func DefaultConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}
	return info.get(NewDefaultConfig()), nil
}

// IsSensitiveKey reports whether key's value can carry a credential.
func IsSensitiveKey(key string) bool {
	return sensitiveKeys[key]
}

// RedactValue hides the credential part of a sensitive value. URLs keep their
// scheme and host so the target stays recognizable. Other keys pass through.
func RedactValue(key, value string) string {
	if value == "" || !IsSensitiveKey(key) {
		return value
	}

	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return redacted
	}
	if _, ok := u.User.Password(); ok {
		return u.Redacted()
	}
	return u.Scheme + "://" + u.Host + "/" + redacted
}
