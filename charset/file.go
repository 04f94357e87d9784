package charset

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// utf8BOM is stripped from the start of UTF-8 charset files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Read reads a charset file: every character it contains except line
// breaks. Files that are not valid UTF-8 are decoded as GB18030.
func Read(r io.Reader) (*Set, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("charset: read: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		data, _, err = transform.Bytes(simplifiedchinese.GB18030.NewDecoder(), data)
		if err != nil {
			return nil, fmt.Errorf("charset: decode GB18030: %w", err)
		}
	}
	return FromString(string(data)), nil
}

// Load reads the charset file at path.
func Load(path string) (*Set, error) {
	f, err := os.Open(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return Read(f)
}
