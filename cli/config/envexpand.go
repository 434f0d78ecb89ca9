// Package config handles YAML config file loading for framewire run.
package config

import (
	"os"
	"regexp"
)

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default} in input.
//
// ${VAR} expands to the variable's value or the empty string.
// ${VAR:-default} expands to default when VAR is unset or empty.
// Missing secrets such as a redis URL surface later in Validate.
func ExpandEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		if value, ok := os.LookupEnv(groups[1]); ok && value != "" {
			return value
		}
		if len(groups) >= 3 {
			return groups[2]
		}
		return ""
	})
}
