package document

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// Detect sniffs the text encoding of raw: byte order mark first, then an
// HTML meta charset prescan, then UTF-8 validity, then windows-1252.
func Detect(raw []byte) string {
	_, name, _ := charset.DetermineEncoding(raw, "text/html")
	if name == "" {
		return "utf-8"
	}
	return name
}

// Decode converts raw bytes in the named encoding to a UTF-8 document.
// Invalid sequences are replaced rather than rejected.
func Decode(raw []byte, name string) (*Document, error) {
	enc, err := lookup(name)
	if err != nil {
		return nil, err
	}
	text, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, eris.Wrapf(err, "document: decode %s", name)
	}
	doc := Parse(strings.TrimPrefix(string(text), "\ufeff"))
	doc.Encoding = name
	return doc, nil
}

// ReadFile reads path, detects its encoding and returns the decoded document.
func ReadFile(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "document: read %s", path)
	}
	return Decode(raw, Detect(raw))
}

// Encode renders doc in its own encoding. Runes the target encoding cannot
// represent are replaced.
func Encode(doc *Document) ([]byte, error) {
	name := doc.Encoding
	if name == "" {
		name = "utf-8"
	}
	enc, err := lookup(name)
	if err != nil {
		return nil, err
	}
	out, err := encoding.ReplaceUnsupported(enc.NewEncoder()).Bytes([]byte(doc.String()))
	if err != nil {
		return nil, eris.Wrapf(err, "document: encode %s", name)
	}
	return out, nil
}

// WriteFile encodes doc and replaces path atomically.
func WriteFile(path string, doc *Document) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "document: create temp for %s", path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return eris.Wrapf(err, "document: chmod %s", path)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return eris.Wrapf(err, "document: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "document: close %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrapf(err, "document: replace %s", path)
	}
	return nil
}

func lookup(name string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, eris.Wrapf(err, "document: unsupported encoding %q", name)
	}
	return enc, nil
}
