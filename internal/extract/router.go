package extract

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrUnknownFormat is returned when an item's extension maps to no decoder.
var ErrUnknownFormat = errors.New("no decoder for document format")

// Decoder turns raw item bytes into extractable text.
type Decoder interface {
	Decode(data []byte) (string, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(data []byte) (string, error)

func (f DecoderFunc) Decode(data []byte) (string, error) { return f(data) }

// Router routes source items to a decoder by file extension. Compression
// suffixes are ignored; the mailbox hands over decompressed bytes.
type Router struct {
	decoders map[string]Decoder
}

// NewRouter returns a router covering the supported source formats.
func NewRouter() *Router {
	return &Router{
		decoders: map[string]Decoder{
			".eml": DecoderFunc(func(data []byte) (string, error) {
				return EmailBody(data), nil
			}),
			".txt": DecoderFunc(func(data []byte) (string, error) {
				return string(data), nil
			}),
		},
	}
}

// Route returns the decoder for the named item.
func (r *Router) Route(name string) (Decoder, error) {
	ext := LogicalExt(name)
	d, ok := r.decoders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
	return d, nil
}

// Supported reports whether the named item routes to a decoder.
func (r *Router) Supported(name string) bool {
	_, ok := r.decoders[LogicalExt(name)]
	return ok
}

// LogicalExt returns the document extension with any compression suffix
// stripped: "a.eml.gz" -> ".eml".
func LogicalExt(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == ".gz" || ext == ".zst" {
		ext = strings.ToLower(path.Ext(strings.TrimSuffix(name, ext)))
	}
	return ext
}
