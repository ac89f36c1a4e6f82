// Package fileio reads and writes text files and reports every failure as a
// sqlerr.ErrFile. Input may be in any encoding known to the WHATWG encoding
// index; it is always returned as UTF-8 with a leading byte order mark removed
// and line endings normalized to "\n".
package fileio

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/kalbasit/sqltmpl/sqlerr"
)

// DefaultEncoding is used when no encoding is given.
const DefaultEncoding = "utf-8"

// Encoding resolves an encoding name such as "utf-8", "latin1" or
// "windows-1252". An empty name is DefaultEncoding.
func Encoding(name string) (encoding.Encoding, error) {
	if name == "" {
		name = DefaultEncoding
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, sqlerr.Configuration("", err, "unknown encoding %q", name)
	}

	return enc, nil
}

// ReadText returns the content of path decoded from encodingName.
func ReadText(path, encodingName string) (string, error) {
	enc, err := Encoding(encodingName)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", translate(path, err, "reading")
	}

	if info.IsDir() {
		return "", sqlerr.File(path, nil, "path is a directory")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", translate(path, err, "reading")
	}

	if enc == unicode.UTF8 && !hasUTF16BOM(raw) && !utf8.Valid(raw) {
		return "", sqlerr.File(path, nil, "cannot decode file as %s", DefaultEncoding)
	}

	decoded, _, err := transform.Bytes(unicode.BOMOverride(enc.NewDecoder()), raw)
	if err != nil {
		return "", sqlerr.File(path, err, "cannot decode file as %s", encodingName)
	}

	return normalizeNewlines(string(decoded)), nil
}

// WriteText writes content to path as UTF-8, creating missing parent
// directories.
func WriteText(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:mnd
			return translate(path, err, "creating directory for")
		}
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil { //nolint:gosec,mnd
		return translate(path, err, "writing")
	}

	return nil
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.Mode().IsRegular()
}

func translate(path string, err error, op string) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return sqlerr.File(path, err, "file not found")
	case errors.Is(err, fs.ErrPermission):
		return sqlerr.File(path, err, "permission denied %s file", op)
	default:
		return sqlerr.File(path, err, "OS error %s file", op)
	}
}

// a UTF-16 byte order mark overrides the requested encoding.
func hasUTF16BOM(b []byte) bool {
	return bytes.HasPrefix(b, []byte{0xfe, 0xff}) || bytes.HasPrefix(b, []byte{0xff, 0xfe})
}

func normalizeNewlines(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}

	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\r", "\n")
}
