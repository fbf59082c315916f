package identity

import "errors"

// Reasons carried by a BadArgument.
const (
	Invalid   = "invalid"
	Exists    = "exists"
	NotExists = "!exists"
)

// Fields named by a BadArgument.
const (
	FieldKataID         = "kata_id"
	FieldAvatarName     = "avatar_name"
	FieldImageName      = "image_name"
	FieldPathedFilename = "pathed_filename"
	FieldMaxSeconds     = "max_seconds"
)

// BadArgument reports a usage error: an argument that failed validation or
// an existence precondition. It renders as "field:reason", e.g.
// "kata_id:!exists".
type BadArgument struct {
	Field  string
	Reason string
}

func (e *BadArgument) Error() string {
	return e.Field + ":" + e.Reason
}

// Bad returns a BadArgument for field and reason.
func Bad(field, reason string) error {
	return &BadArgument{Field: field, Reason: reason}
}

// IsBadArgument reports whether err is (or wraps) a BadArgument.
func IsBadArgument(err error) bool {
	var bad *BadArgument
	return errors.As(err, &bad)
}

// IsBad reports whether err is a BadArgument for the given field and reason.
func IsBad(err error, field, reason string) bool {
	var bad *BadArgument
	if !errors.As(err, &bad) {
		return false
	}
	return bad.Field == field && bad.Reason == reason
}
