// Package attachment turns data-URL payloads into stored objects.
package attachment

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"strings"
)

// ErrMalformedPayload is returned for any payload that is not a well-formed
// "<scheme>:<mime>;<marker>,<base64>" string.
var ErrMalformedPayload = errors.New("malformed payload")

// Payload is a decoded data URL.
type Payload struct {
	Data        []byte
	ContentType string
}

// DecodePayload parses "data:<mime>;base64,<data>". The content type is the
// text between the first ':' and the first ';' of the header; everything after
// the first ',' is strict standard Base64.
func DecodePayload(encoded string) (Payload, error) {
	header, data, ok := strings.Cut(encoded, ",")
	if !ok {
		return Payload{}, malformed("missing ',' separator")
	}

	contentType, err := parseHeader(header)
	if err != nil {
		return Payload{}, err
	}

	if data == "" {
		return Payload{}, malformed("empty data segment")
	}
	// Strict mode still skips CR/LF; a data URL never contains them.
	if strings.ContainsAny(data, "\r\n") {
		return Payload{}, malformed("line break in base64 data")
	}
	raw, err := base64.StdEncoding.Strict().DecodeString(data)
	if err != nil {
		return Payload{}, malformed(fmt.Sprintf("invalid base64: %v", err))
	}
	if len(raw) == 0 {
		return Payload{}, malformed("empty data segment")
	}

	return Payload{Data: raw, ContentType: contentType}, nil
}

// parseHeader extracts the MIME type from "<scheme>:<mime>;<marker>...". The
// caller's casing is kept; MIME types compare case-insensitively.
func parseHeader(header string) (string, error) {
	colon := strings.IndexByte(header, ':')
	semi := strings.IndexByte(header, ';')
	switch {
	case colon <= 0:
		return "", malformed("header has no scheme")
	case semi < 0 || semi < colon:
		return "", malformed("header has no ';' after the MIME type")
	case semi == len(header)-1:
		return "", malformed("header has no encoding marker")
	}

	contentType := header[colon+1 : semi]
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.Contains(mediaType, "/") || mediaType != strings.ToLower(contentType) {
		return "", malformed(fmt.Sprintf("unrecognized MIME type %q", contentType))
	}
	return contentType, nil
}

func malformed(reason string) error {
	return fmt.Errorf("%w: %s", ErrMalformedPayload, reason)
}
