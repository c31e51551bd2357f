package repair

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// decode converts raw bytes to text using the detected encoding. UTF-8 and
// UTF-16 input is validated before decoding, so an encoded U+FFFD survives.
// Other decoders only emit U+FFFD for unmappable bytes, which is a failure.
func decode(raw []byte, det Detection) (string, error) {
	if det.BOMLength > len(raw) {
		return "", fmt.Errorf("bom length %d exceeds input size %d", det.BOMLength, len(raw))
	}
	body := raw[det.BOMLength:]

	if strings.EqualFold(det.Charset, "utf-8") {
		if !utf8.Valid(body) {
			return "", fmt.Errorf("invalid utf-8 sequence at byte %d", invalidUTF8Offset(body)+det.BOMLength)
		}
		return string(body), nil
	}
	if det.Encoding == nil {
		return "", errors.New("no decoder for " + det.Charset)
	}

	order, isUTF16 := utf16Order(det.Charset)
	if isUTF16 {
		if err := validateUTF16(body, order, det.BOMLength); err != nil {
			return "", fmt.Errorf("%s: %w", det.Charset, err)
		}
	}

	out, err := det.Encoding.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("%s: %w", det.Charset, err)
	}
	if isUTF16 {
		return string(out), nil
	}
	if idx := bytes.IndexRune(out, utf8.RuneError); idx >= 0 {
		return "", fmt.Errorf("%s decoder produced a replacement character at output offset %d", det.Charset, idx)
	}
	return string(out), nil
}

func utf16Order(charset string) (binary.ByteOrder, bool) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "utf-16le":
		return binary.LittleEndian, true
	case "utf-16be", "utf-16":
		return binary.BigEndian, true
	}
	return nil, false
}

// validateUTF16 rejects odd-length input and unpaired surrogates. offset is
// added to reported byte positions.
func validateUTF16(b []byte, order binary.ByteOrder, offset int) error {
	if len(b)%2 != 0 {
		return fmt.Errorf("odd byte length %d", len(b))
	}
	for i := 0; i < len(b); i += 2 {
		u := order.Uint16(b[i:])
		switch {
		case u >= 0xD800 && u <= 0xDBFF:
			if i+4 > len(b) {
				return fmt.Errorf("unpaired high surrogate at byte %d", i+offset)
			}
			next := order.Uint16(b[i+2:])
			if next < 0xDC00 || next > 0xDFFF {
				return fmt.Errorf("unpaired high surrogate at byte %d", i+offset)
			}
			i += 2
		case u >= 0xDC00 && u <= 0xDFFF:
			return fmt.Errorf("unpaired low surrogate at byte %d", i+offset)
		}
	}
	return nil
}

func invalidUTF8Offset(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\r", "\n")
}
