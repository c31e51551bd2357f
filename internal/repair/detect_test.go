package repair

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

func TestAcceptGuessRejectsLowConfidence(t *testing.T) {
	_, err := acceptGuess("ISO-8859-1", "fr", 12, DefaultMinConfidence)
	if err == nil {
		t.Fatal("expected rejection below the confidence floor")
	}
	if !strings.Contains(err.Error(), "below minimum") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestAcceptGuessResolvesCharsetNames(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{name: "ISO-8859-1", want: "windows-1252"},
		{name: "windows-1254", want: "windows-1254"},
		{name: "ISO-8859-9", want: "windows-1254"},
		{name: "Shift_JIS", want: "shift_jis"},
		{name: "GB-18030", want: "gb18030"},
	}
	for _, tc := range cases {
		det, err := acceptGuess(tc.name, "", 80, DefaultMinConfidence)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if det.Charset != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, det.Charset)
		}
		if det.Encoding == nil || det.Method != MethodStatistical {
			t.Fatalf("%s: incomplete detection %+v", tc.name, det)
		}
	}
}

func TestAcceptGuessRejectsUnknownCharset(t *testing.T) {
	if _, err := acceptGuess("UTF-32LE", "", 100, DefaultMinConfidence); err == nil {
		t.Fatal("expected error for charset without decoder")
	}
}

func TestDetectEmptyInput(t *testing.T) {
	if _, err := NewDetector(DefaultMinConfidence).Detect(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestDetectBOMs(t *testing.T) {
	d := NewDetector(DefaultMinConfidence)
	cases := map[string][]byte{
		"utf-8":    {0xEF, 0xBB, 0xBF, 'a'},
		"utf-16le": {0xFF, 0xFE, 'a', 0x00},
		"utf-16be": {0xFE, 0xFF, 0x00, 'a'},
	}
	for want, raw := range cases {
		det, err := d.Detect(raw)
		if err != nil {
			t.Fatalf("%s: %v", want, err)
		}
		if det.Charset != want || det.Method != MethodBOM {
			t.Fatalf("%s: unexpected detection %+v", want, det)
		}
		text, err := decode(raw, det)
		if err != nil {
			t.Fatalf("%s: decode: %v", want, err)
		}
		if text != "a" {
			t.Fatalf("%s: expected %q, got %q", want, "a", text)
		}
	}
}

type failingTransformer struct{ transform.NopResetter }

func (failingTransformer) Transform(dst, src []byte, atEOF bool) (int, int, error) {
	return 0, 0, errors.New("unsupported byte")
}

type replacingTransformer struct{ transform.NopResetter }

func (replacingTransformer) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		if nDst+3 > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += copy(dst[nDst:], "\uFFFD")
		nSrc++
	}
	return nDst, nSrc, nil
}

type fakeEncoding struct{ t transform.Transformer }

func (f fakeEncoding) NewDecoder() *encoding.Decoder { return &encoding.Decoder{Transformer: f.t} }
func (f fakeEncoding) NewEncoder() *encoding.Encoder { return &encoding.Encoder{Transformer: f.t} }

func TestDecodeFailures(t *testing.T) {
	cases := []struct {
		name string
		det  Detection
		raw  []byte
	}{
		{name: "invalid utf8", det: Detection{Charset: "utf-8"}, raw: []byte("ok\xff")},
		{name: "decoder error", det: Detection{Charset: "x-fail", Encoding: fakeEncoding{failingTransformer{}}}, raw: []byte("abc")},
		{name: "replacement characters", det: Detection{Charset: "x-replace", Encoding: fakeEncoding{replacingTransformer{}}}, raw: []byte("abc")},
		{name: "missing decoder", det: Detection{Charset: "x-none"}, raw: []byte("abc")},
		{name: "bom overrun", det: Detection{Charset: "utf-8", BOMLength: 3}, raw: []byte("a")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := decode(tc.raw, tc.det); err == nil {
				t.Fatal("expected decode failure")
			}
		})
	}
}

func TestDecodeSingleByteCharset(t *testing.T) {
	det := Detection{Charset: "windows-1254", Encoding: charmap.Windows1254}
	text, err := decode([]byte("K\xfdz"), det)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if text != "Kız" {
		t.Fatalf("unexpected text %q", text)
	}
}

func utf16Detection(charset string) Detection {
	order := unicode.LittleEndian
	if charset == "utf-16be" {
		order = unicode.BigEndian
	}
	return Detection{Charset: charset, Encoding: unicode.UTF16(order, unicode.IgnoreBOM)}
}

func TestDecodeUTF16KeepsEncodedReplacementCharacter(t *testing.T) {
	le := []byte{0x61, 0x00, 0xFD, 0xFF, 0x62, 0x00}
	text, err := decode(le, utf16Detection("utf-16le"))
	if err != nil {
		t.Fatalf("decode utf-16le: %v", err)
	}
	if text != "a\uFFFDb" {
		t.Fatalf("unexpected text %q", text)
	}

	be := []byte{0x00, 0x61, 0xFF, 0xFD, 0xD8, 0x3D, 0xDE, 0x00}
	text, err = decode(be, utf16Detection("utf-16be"))
	if err != nil {
		t.Fatalf("decode utf-16be: %v", err)
	}
	if text != "a\uFFFD\U0001F600" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestDecodeUTF16RejectsMalformedInput(t *testing.T) {
	cases := []struct {
		name string
		raw  []byte
		want string
	}{
		{name: "odd length", raw: []byte{0x61, 0x00, 0x62}, want: "odd byte length"},
		{name: "high surrogate then letter", raw: []byte{0x3D, 0xD8, 0x61, 0x00}, want: "unpaired high surrogate at byte 0"},
		{name: "trailing high surrogate", raw: []byte{0x61, 0x00, 0x3D, 0xD8}, want: "unpaired high surrogate at byte 2"},
		{name: "lone low surrogate", raw: []byte{0x61, 0x00, 0x00, 0xDE}, want: "unpaired low surrogate at byte 2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decode(tc.raw, utf16Detection("utf-16le"))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}
