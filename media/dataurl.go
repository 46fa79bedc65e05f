package media

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// ParseDataURL decodes a base64 "data:" URL as produced by a browser canvas
// (for example "data:image/jpeg;base64,/9j/...") and returns the payload and
// its declared media type.
func ParseDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	header, payload, ok := strings.Cut(s, ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: data URL has no payload", ErrInvalidImage)
	}
	if !strings.HasPrefix(header, "data:") {
		return nil, "", fmt.Errorf("%w: missing data: scheme", ErrInvalidImage)
	}

	params := strings.Split(strings.TrimPrefix(header, "data:"), ";")
	mediaType := strings.ToLower(params[0])
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(p, "base64") {
			isBase64 = true
		}
	}
	if !isBase64 {
		return nil, "", fmt.Errorf("%w: data URL is not base64 encoded", ErrInvalidImage)
	}
	if mediaType != "" && !strings.HasPrefix(mediaType, "image/") {
		return nil, "", fmt.Errorf("%w: unsupported media type %q", ErrInvalidImage, mediaType)
	}

	payload = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, payload)

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, "", fmt.Errorf("%w: invalid base64 payload: %v", ErrInvalidImage, err)
		}
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}
	return data, mediaType, nil
}
