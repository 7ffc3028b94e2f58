// internal/export/encode.go
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/solatis/querykit/internal/log"
)

// Format is the encoding of an export file.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat parses a format name. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatMsgpack:
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("unknown export format %q (expected json or msgpack)", s)
	}
}

// Ext is the file extension for the format and compression setting.
func (f Format) Ext(compress bool) string {
	ext := "." + string(f)
	if compress {
		ext += ".zst"
	}
	return ext
}

// Encode writes records to w as one JSON array or one msgpack array,
// zstd-compressed when compress is set.
func Encode(w io.Writer, records []log.Record, format Format, compress bool) error {
	if compress {
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("create zstd writer: %w", err)
		}
		if err := encode(zw, records, format); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	}
	return encode(w, records, format)
}

func encode(w io.Writer, records []log.Record, format Format) error {
	if records == nil {
		records = []log.Record{}
	}
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
	case FormatMsgpack:
		if err := msgpack.NewEncoder(w).Encode(records); err != nil {
			return fmt.Errorf("encode msgpack: %w", err)
		}
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
	return nil
}

// Decode reads an export written by Encode.
func Decode(r io.Reader, format Format, compressed bool) ([]log.Record, error) {
	if compressed {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("create zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	var out []log.Record
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case FormatMsgpack:
		if err := msgpack.NewDecoder(r).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode msgpack: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
	return out, nil
}
