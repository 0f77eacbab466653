package encoding

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gofrs/flock"
	"github.com/saintfish/chardet"
	xencoding "golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/simplifiedchinese"

	bserrors "github.com/FocuswithJustin/Bookshelf/core/errors"
	"github.com/FocuswithJustin/Bookshelf/internal/logging"
)

// DefaultSniffBytes is the prefix length handed to the charset detector.
const DefaultSniffBytes = 20000

// CanonicalCharset is the charset every normalized source ends up in.
const CanonicalCharset = "UTF-8"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Detector proposes a charset for a sample of bytes.
type Detector interface {
	Detect(sample []byte) (charset string, confidence int, err error)
}

// chardetDetector adapts saintfish/chardet to Detector.
type chardetDetector struct {
	d *chardet.Detector
}

// NewDetector returns the statistical text detector used by default.
func NewDetector() Detector {
	return &chardetDetector{d: chardet.NewTextDetector()}
}

func (c *chardetDetector) Detect(sample []byte) (string, int, error) {
	res, err := c.d.DetectBest(sample)
	if err != nil {
		return "", 0, err
	}
	return res.Charset, res.Confidence, nil
}

// Options controls detection and decoding.
type Options struct {
	SniffBytes int                // prefix length for detection, DefaultSniffBytes if zero
	Detector   Detector           // NewDetector() if nil
	Fallback   xencoding.Encoding // decoder used when detection fails, GB18030 if nil
}

func (o Options) withDefaults() Options {
	if o.SniffBytes <= 0 {
		o.SniffBytes = DefaultSniffBytes
	}
	if o.Detector == nil {
		o.Detector = NewDetector()
	}
	if o.Fallback == nil {
		o.Fallback = simplifiedchinese.GB18030
	}
	return o
}

// Report describes what Normalize did to a buffer.
type Report struct {
	Path       string
	Charset    string // charset reported by detection ("" when none)
	Confidence int
	Decoder    string // decoder actually used
	Changed    bool   // output differs from input
	Degraded   bool
	Dropped    int // undecodable sequences removed
	Warning    *bserrors.EncodingDegradedError
}

// Normalize transcodes data to UTF-8. It never fails: when the charset cannot
// be determined the fallback decoder runs with ignore semantics and the
// report is marked degraded.
func Normalize(data []byte, opts Options) ([]byte, *Report) {
	opts = opts.withDefaults()
	rep := &Report{}

	if bytes.HasPrefix(data, utf8BOM) {
		data = data[len(utf8BOM):]
		rep.Changed = true
	}

	if utf8.Valid(data) {
		rep.Charset = CanonicalCharset
		rep.Confidence = 100
		rep.Decoder = CanonicalCharset
		return data, rep
	}

	sample := data
	if len(sample) > opts.SniffBytes {
		sample = sample[:opts.SniffBytes]
	}
	sample = trimToRuneBoundary(sample)

	var out []byte
	switch {
	case utf8.Valid(sample) && !isASCII(sample):
		// The prefix is unambiguously UTF-8; the damage is further in.
		rep.Charset = CanonicalCharset
		rep.Confidence = 100
		rep.Decoder = CanonicalCharset
		out, rep.Dropped = dropInvalidUTF8(data)
	default:
		if isASCII(sample) {
			sample = data
		}
		out = decodeDetected(data, sample, opts, rep)
	}

	rep.Changed = true
	if rep.Dropped > 0 {
		rep.Degraded = true
	}
	if rep.Degraded {
		rep.Warning = &bserrors.EncodingDegradedError{
			Charset:    rep.Charset,
			Confidence: rep.Confidence,
			Dropped:    rep.Dropped,
		}
		logging.Warn("encoding_degraded",
			"charset", rep.Charset,
			"confidence", rep.Confidence,
			"decoder", rep.Decoder,
			"dropped", rep.Dropped,
		)
	}
	return out, rep
}

func decodeDetected(data, sample []byte, opts Options, rep *Report) []byte {
	charset, confidence, err := opts.Detector.Detect(sample)
	rep.Charset = charset
	rep.Confidence = confidence

	enc, name := resolveCharset(charset)
	if err != nil || enc == nil {
		if strings.EqualFold(name, CanonicalCharset) && err == nil {
			rep.Decoder = CanonicalCharset
			out, dropped := dropInvalidUTF8(data)
			rep.Dropped = dropped
			return out
		}
		rep.Degraded = true
		enc = opts.Fallback
		name = encodingName(opts.Fallback)
	}
	rep.Decoder = name

	decoded, derr := enc.NewDecoder().Bytes(data)
	if derr != nil {
		rep.Degraded = true
		out, dropped := dropInvalidUTF8(data)
		rep.Dropped = dropped
		return out
	}
	out, dropped := dropReplacement(decoded)
	rep.Dropped = dropped
	return out
}

// resolveCharset maps a detector name to a decoder. A nil encoding with name
// "UTF-8" means no transcoding is needed.
func resolveCharset(charset string) (xencoding.Encoding, string) {
	name := strings.TrimSpace(charset)
	if name == "" {
		return nil, ""
	}
	upper := strings.ToUpper(name)
	switch {
	case strings.HasPrefix(upper, "GB"):
		return simplifiedchinese.GB18030, "GB18030"
	case upper == "UTF-8" || upper == "UTF8":
		return nil, CanonicalCharset
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, name
	}
	canonical, err := htmlindex.Name(enc)
	if err != nil {
		canonical = name
	}
	if strings.EqualFold(canonical, "utf-8") {
		return nil, CanonicalCharset
	}
	return enc, canonical
}

func encodingName(enc xencoding.Encoding) string {
	if enc == simplifiedchinese.GB18030 {
		return "GB18030"
	}
	if name, err := htmlindex.Name(enc); err == nil {
		return name
	}
	return fmt.Sprint(enc)
}

// NormalizeFile normalizes the file at path in place. The rewrite happens
// under an advisory lock and replaces the file atomically.
func NormalizeFile(path string, opts Options) (*Report, error) {
	lockPath := path + ".lock"
	lock := flock.New(lockPath)
	if err := lock.Lock(); err != nil {
		return nil, bserrors.NewIO("lock", lockPath, err)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lockPath)
	}()

	info, err := os.Stat(path)
	if err != nil {
		return nil, bserrors.NewIO("stat", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, bserrors.NewIO("read", path, err)
	}

	out, rep := Normalize(data, opts)
	rep.Path = path
	if rep.Warning != nil {
		rep.Warning.Path = path
	}
	if !rep.Changed {
		return rep, nil
	}

	if err := writeAtomic(path, out, info.Mode().Perm()); err != nil {
		return nil, err
	}
	logging.Debug("source_normalized", "path", path, "decoder", rep.Decoder, "bytes", len(out))
	return rep, nil
}

func writeAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".normalize-*")
	if err != nil {
		return bserrors.NewIO("create temp file for", path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return bserrors.NewIO("write", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return bserrors.NewIO("close", tmpName, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return bserrors.NewIO("chmod", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return bserrors.NewIO("replace", path, err)
	}
	return nil
}

// trimToRuneBoundary drops an incomplete UTF-8 sequence cut off by sampling.
func trimToRuneBoundary(b []byte) []byte {
	for i := 0; i < utf8.UTFMax && i < len(b); i++ {
		end := len(b) - i
		if utf8.Valid(b[:end]) {
			return b[:end]
		}
	}
	return b
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func dropInvalidUTF8(b []byte) ([]byte, int) {
	out := make([]byte, 0, len(b))
	dropped := 0
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			dropped++
		} else {
			out = append(out, b[:size]...)
		}
		b = b[size:]
	}
	return out, dropped
}

func dropReplacement(b []byte) ([]byte, int) {
	if !bytes.ContainsRune(b, utf8.RuneError) {
		return b, 0
	}
	out := make([]byte, 0, len(b))
	dropped := 0
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError {
			dropped++
		} else {
			out = append(out, b[:size]...)
		}
		b = b[size:]
	}
	return out, dropped
}
