package media

import "errors"

// ErrInvalidImage is returned when image bytes cannot be decoded. It is
// distinct from an image that decodes fine but contains no face.
var ErrInvalidImage = errors.New("invalid image")
