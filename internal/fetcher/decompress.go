package fetcher

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
)

// DecodeBody undoes the Content-Encoding of a response body. Bodies that were
// already decoded upstream come back unchanged.
func DecodeBody(body []byte, contentEncoding string) ([]byte, error) {
	if len(body) == 0 {
		return body, nil
	}

	if len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b {
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("open gzip body: %w", err)
		}
		defer reader.Close()
		decoded, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("read gzip body: %w", err)
		}
		return decoded, nil
	}

	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "br":
		decoded, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return body, nil
		}
		return decoded, nil
	case "deflate":
		if reader, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			defer reader.Close()
			if decoded, err := io.ReadAll(reader); err == nil {
				return decoded, nil
			}
		}
		decoded, err := io.ReadAll(flate.NewReader(bytes.NewReader(body)))
		if err != nil {
			return body, nil
		}
		return decoded, nil
	}

	return body, nil
}
