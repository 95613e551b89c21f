package codec

// Field numbers of the well-known types, fixed by their published
// definitions.
const (
	anyTypeURLFieldNumber   = 1
	anyValueFieldNumber     = 2
	timestampSecondsNumber  = 1
	timestampNanosNumber    = 2
	durationSecondsNumber   = 1
	durationNanosNumber     = 2
	wrapperValueFieldNumber = 1
	structFieldsNumber      = 1
	listValueValuesNumber   = 1
	fieldMaskPathsNumber    = 1

	valueNullNumber   = 1
	valueNumberNumber = 2
	valueStringNumber = 3
	valueBoolNumber   = 4
	valueStructNumber = 5
	valueListNumber   = 6
)

const (
	// nanosPerSecond - 1: the largest representable nanos component.
	maxNanos = 999999999
	// Duration.seconds bound: ±10,000 years.
	maxDurationSeconds = 315576000000
	// Timestamp.seconds bounds: 0001-01-01T00:00:00Z .. 9999-12-31T23:59:59Z.
	minTimestampSeconds = -62135596800
	maxTimestampSeconds = 253402300799
)

// jsonCamelCase converts a snake_case identifier to the wire JSON form:
// underscores are dropped and the following lowercase letter is upcased.
func jsonCamelCase(s string) string {
	var b []byte
	var wasUnderscore bool
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '_' {
			if wasUnderscore && 'a' <= c && c <= 'z' {
				c -= 'a' - 'A'
			}
			b = append(b, c)
		}
		wasUnderscore = c == '_'
	}
	return string(b)
}

// jsonSnakeCase is the inverse direction: uppercase letters become
// underscore-prefixed lowercase.
func jsonSnakeCase(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'A' <= c && c <= 'Z' {
			b = append(b, '_', c+'a'-'A')
		} else {
			b = append(b, c)
		}
	}
	return string(b)
}
