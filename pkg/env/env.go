// Package env reads process environment variables with the convention
// that a variable set to an empty value counts as unset.
package env

import (
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Var fetches the environment variable key, reporting false when the
// variable is unset or empty.
func Var(key string) (string, bool) {
	value := os.Getenv(key)
	return value, value != ""
}

// Bool parses key as a boolean, treating unset, empty, and unparsable
// values as the given default. Any value strconv.ParseBool accepts
// works, as do "yes" and "no".
func Bool(key string, def bool) bool {
	value, ok := Var(key)
	if !ok {
		return def
	}

	switch strings.ToLower(value) {
	case "yes":
		return true
	case "no":
		return false
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		log.Warn().Str("var", key).Str("value", value).
			Msg("unparsable boolean in environment; using default")
		return def
	}

	log.Warn().Str("var", key).Str("value", value).Msg("value overridden from environment")
	return parsed
}

// Int parses key as an integer, falling back to the given default on
// absence or parse failure.
func Int(key string, def int) int {
	value, ok := Var(key)
	if !ok {
		return def
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Warn().Str("var", key).Str("value", value).
			Msg("unparsable integer in environment; using default")
		return def
	}

	log.Warn().Str("var", key).Str("value", value).Msg("value overridden from environment")
	return parsed
}

// List splits key into fields on commas, semicolons, and whitespace.
// Unset and empty both yield nil.
func List(key string) []string {
	value, ok := Var(key)
	if !ok {
		return nil
	}

	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}
