package env

import "os"

// Get returns the environment variable's value, or fallback when it is
// unset or empty. Empty counts as unset because container runtimes often
// template variables to "".
func Get(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return fallback
	}
	return val
}
