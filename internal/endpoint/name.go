package endpoint

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DeriveName turns a location into an operation name: every run of
// characters outside [A-Za-z0-9] separates words, placeholder braces are
// dropped, and the words are lower-cased and joined with underscores.
//
//	students               -> students
//	api/v1/user-info       -> api_v1_user_info
//	students/{id}/courses  -> students_id_courses
//
// A name starting with a digit gets an "op_" prefix.
func DeriveName(location string) string {
	words := strings.FieldsFunc(location, func(r rune) bool {
		return r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r))
	})
	if len(words) == 0 {
		return ""
	}
	name := strings.ToLower(strings.Join(words, "_"))
	if name[0] >= '0' && name[0] <= '9' {
		name = "op_" + name
	}
	return name
}

// ResolveName returns the operation name for d: its explicit Name when set,
// otherwise the name derived from its Location.
func ResolveName(d Definition) (string, error) {
	if name := strings.TrimSpace(d.Name); name != "" {
		name = strings.TrimPrefix(name, ":")
		if !identifierPattern.MatchString(name) {
			return "", fmt.Errorf("name %q is not a valid identifier", d.Name)
		}
		return name, nil
	}
	name := DeriveName(d.Location)
	if name == "" {
		return "", fmt.Errorf("cannot derive an operation name from location %q", d.Location)
	}
	return name, nil
}
