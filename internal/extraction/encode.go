package extraction

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const dataURIPrefix = "data:image/png;base64,"

// Encode normalizes an uploaded receipt to PNG and returns it as an inline
// data URI, usable both as an <img> source and as extraction input. It
// either succeeds with a complete value or fails; nothing partial.
func Encode(data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("encoding receipt: empty file")
	}
	pngData, err := normalizeImage(data, contentType)
	if err != nil {
		return "", fmt.Errorf("encoding receipt: %w", err)
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(pngData), nil
}

// DecodeDataURI returns the raw image bytes of a base64 data URI produced
// by Encode.
func DecodeDataURI(uri string) ([]byte, error) {
	if !strings.HasPrefix(uri, "data:") {
		return nil, fmt.Errorf("not a data URI")
	}
	idx := strings.Index(uri, ";base64,")
	if idx == -1 {
		return nil, fmt.Errorf("not a base64 data URI")
	}
	data, err := base64.StdEncoding.DecodeString(uri[idx+len(";base64,"):])
	if err != nil {
		return nil, fmt.Errorf("decoding data URI: %w", err)
	}
	return data, nil
}
