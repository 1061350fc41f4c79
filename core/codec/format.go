// Package codec reads and writes documents and change logs.
//
// Three encodings share one wire shape: JSON (.bdocjs, .bdocjson, .bdoc),
// YAML (.bdocym) and a streamed MessagePack variant (.bdocmp) that starts
// with a version tag. Any of them may be wrapped in gzip (.gz) or xz (.xz).
package codec

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/bdoc/core/errors"
)

// Format is a serialization format.
type Format string

// Supported formats.
const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatMsgPack Format = "msgpack"
)

// Compression is an optional stream wrapper.
type Compression string

// Supported compressions.
const (
	CompressionNone Compression = ""
	CompressionGzip Compression = "gzip"
	CompressionXZ   Compression = "xz"
)

// IsValid returns true if the format is known.
func (f Format) IsValid() bool {
	switch f {
	case FormatJSON, FormatYAML, FormatMsgPack:
		return true
	}
	return false
}

// Extension returns the canonical file extension for the format.
func (f Format) Extension() string {
	switch f {
	case FormatYAML:
		return ".bdocym"
	case FormatMsgPack:
		return ".bdocmp"
	default:
		return ".bdocjs"
	}
}

// Extension returns the file suffix of the compression, or "".
func (c Compression) Extension() string {
	switch c {
	case CompressionGzip:
		return ".gz"
	case CompressionXZ:
		return ".xz"
	}
	return ""
}

// formatExtensions maps file extensions to formats.
var formatExtensions = map[string]Format{
	".bdocjs":   FormatJSON,
	".bdocjson": FormatJSON,
	".bdoc":     FormatJSON,
	".json":     FormatJSON,
	".bdocym":   FormatYAML,
	".bdocyaml": FormatYAML,
	".yaml":     FormatYAML,
	".yml":      FormatYAML,
	".bdocmp":   FormatMsgPack,
	".msgpack":  FormatMsgPack,
}

var compressionExtensions = map[string]Compression{
	".gz": CompressionGzip,
	".xz": CompressionXZ,
}

// Detect determines format and compression from a file name, e.g.
// "doc.bdocjs.gz" is gzip-compressed JSON.
func Detect(path string) (Format, Compression, error) {
	name := strings.ToLower(filepath.Base(path))

	comp := CompressionNone
	if c, ok := compressionExtensions[filepath.Ext(name)]; ok {
		comp = c
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}

	if f, ok := formatExtensions[filepath.Ext(name)]; ok {
		return f, comp, nil
	}
	return "", comp, errors.NewUnsupported("file extension", fmt.Sprintf("cannot determine format of %q", path))
}

// formatNames maps user-facing names to formats.
var formatNames = map[string]Format{
	"json":                  FormatJSON,
	"bdocjs":                FormatJSON,
	"bdocjson":              FormatJSON,
	"application/json":      FormatJSON,
	"yaml":                  FormatYAML,
	"yml":                   FormatYAML,
	"bdocym":                FormatYAML,
	"application/yaml":      FormatYAML,
	"application/x-yaml":    FormatYAML,
	"text/yaml":             FormatYAML,
	"msgpack":               FormatMsgPack,
	"mp":                    FormatMsgPack,
	"bdocmp":                FormatMsgPack,
	"application/msgpack":   FormatMsgPack,
	"application/x-msgpack": FormatMsgPack,
}

// ParseFormat parses a format name, extension or media type.
func ParseFormat(name string) (Format, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if i := strings.IndexByte(key, ';'); i >= 0 {
		key = strings.TrimSpace(key[:i])
	}
	key = strings.TrimPrefix(key, ".")
	if f, ok := formatNames[key]; ok {
		return f, nil
	}
	return "", errors.NewValidation("format", fmt.Sprintf("unknown format %q", name))
}

// MediaType returns the HTTP media type of the format.
func MediaType(f Format) string {
	switch f {
	case FormatYAML:
		return "application/yaml"
	case FormatMsgPack:
		return "application/msgpack"
	default:
		return "application/json"
	}
}
