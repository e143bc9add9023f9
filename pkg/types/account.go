package types

// Account ID length bounds.
const (
	MinAccountIDLen = 2
	MaxAccountIDLen = 64
)

// IsValidAccountID reports whether s is a well-formed account identity.
//
// A valid ID is 2-64 bytes of lower-case letters and digits grouped into
// segments joined by a single '-', '_' or '.'. It never starts or ends with
// a separator and never holds two separators in a row. The check walks the
// bytes once, comparing each byte's separator-ness against the previous one.
func IsValidAccountID(s string) bool {
	if len(s) < MinAccountIDLen || len(s) > MaxAccountIDLen {
		return false
	}

	// A leading separator is caught by starting as if one was just seen.
	lastWasSeparator := true
	for i := 0; i < len(s); i++ {
		var isSeparator bool
		switch c := s[i]; {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			isSeparator = false
		case c == '-', c == '_', c == '.':
			isSeparator = true
		default:
			return false
		}
		if isSeparator && lastWasSeparator {
			return false
		}
		lastWasSeparator = isSeparator
	}
	return !lastWasSeparator
}
