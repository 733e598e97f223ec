// Package featureflags reads FLAG_<NAME> toggles. Flags are resolved once at
// startup and passed around as values.
package featureflags

import "strings"

const DemoAccounts = "demo_accounts"

// Lookup resolves an environment-style key
type Lookup func(key string) string

// EnabledIn reports whether FLAG_<NAME> is true/1/yes/on (case-insensitive)
// according to lookup, usually os.Getenv
func EnabledIn(lookup Lookup, name string) bool {
	v := lookup("FLAG_" + strings.ToUpper(name))
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
