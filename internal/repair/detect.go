package repair

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Method records how an encoding was determined.
type Method string

const (
	MethodBOM         Method = "bom"
	MethodUTF8        Method = "utf8"
	MethodStatistical Method = "statistical"
)

// DefaultMinConfidence is the lowest statistical confidence (0-100) accepted
// by the default detector.
const DefaultMinConfidence = 30

// Detection is the outcome of encoding detection for one input.
type Detection struct {
	Charset    string            `json:"charset"`
	Confidence int               `json:"confidence"`
	Method     Method            `json:"method"`
	Language   string            `json:"language,omitempty"`
	BOMLength  int               `json:"bom_length,omitempty"`
	Encoding   encoding.Encoding `json:"-"`
}

// Detector infers the text encoding of raw bytes.
type Detector interface {
	Detect(raw []byte) (Detection, error)
}

// ChardetDetector checks for a byte-order mark, then for well-formed UTF-8,
// and otherwise accepts the single best statistical guess when its confidence
// reaches MinConfidence.
type ChardetDetector struct {
	MinConfidence int
}

// NewDetector returns the default detector with the given confidence floor.
func NewDetector(minConfidence int) *ChardetDetector {
	return &ChardetDetector{MinConfidence: minConfidence}
}

var boms = []struct {
	prefix  []byte
	charset string
	enc     encoding.Encoding
}{
	{prefix: []byte{0xEF, 0xBB, 0xBF}, charset: "utf-8", enc: unicode.UTF8},
	{prefix: []byte{0xFF, 0xFE}, charset: "utf-16le", enc: unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)},
	{prefix: []byte{0xFE, 0xFF}, charset: "utf-16be", enc: unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)},
}

// chardet names that the WHATWG label registry spells differently.
var charsetAliases = map[string]string{
	"gb-18030": "gb18030",
}

// Detect implements Detector.
func (d *ChardetDetector) Detect(raw []byte) (Detection, error) {
	if len(raw) == 0 {
		return Detection{}, errors.New("input is empty")
	}
	for _, bom := range boms {
		if bytes.HasPrefix(raw, bom.prefix) {
			return Detection{
				Charset:    bom.charset,
				Confidence: 100,
				Method:     MethodBOM,
				BOMLength:  len(bom.prefix),
				Encoding:   bom.enc,
			}, nil
		}
	}
	if utf8.Valid(raw) {
		return Detection{Charset: "utf-8", Confidence: 100, Method: MethodUTF8, Encoding: unicode.UTF8}, nil
	}

	best, err := chardet.NewTextDetector().DetectBest(raw)
	if err != nil {
		return Detection{}, fmt.Errorf("statistical detection: %w", err)
	}
	return acceptGuess(best.Charset, best.Language, best.Confidence, d.MinConfidence)
}

func acceptGuess(name, language string, confidence, minConfidence int) (Detection, error) {
	if confidence < minConfidence {
		return Detection{}, fmt.Errorf("best guess %s has confidence %d, below minimum %d", name, confidence, minConfidence)
	}
	enc, canonical := lookupCharset(name)
	if enc == nil {
		return Detection{}, fmt.Errorf("detected charset %q has no decoder", name)
	}
	return Detection{
		Charset:    canonical,
		Confidence: confidence,
		Method:     MethodStatistical,
		Language:   language,
		Encoding:   enc,
	}, nil
}

func lookupCharset(name string) (encoding.Encoding, string) {
	label := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := charsetAliases[label]; ok {
		label = alias
	}
	return charset.Lookup(label)
}
