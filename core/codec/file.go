package codec

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/bdoc/core/bdoc"
	"github.com/FocuswithJustin/bdoc/core/changelog"
	"github.com/FocuswithJustin/bdoc/core/errors"
)

// Decompress wraps r according to c. The returned closer releases the
// decompressor only; the caller still owns r.
func Decompress(r io.Reader, c Compression) (io.Reader, io.Closer, error) {
	switch c {
	case CompressionNone:
		return r, nopCloser{}, nil
	case CompressionGzip:
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return gzr, gzr, nil
	case CompressionXZ:
		xzr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return xzr, nopCloser{}, nil // xz reader doesn't need closing
	}
	return nil, nil, errors.NewUnsupported("compression", string(c))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// nopWriteCloser adapts a plain writer to the compressor interface.
type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// Compress wraps w according to c. Close must be called to flush the
// compressed stream; it does not close w.
func Compress(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	case CompressionXZ:
		return xz.NewWriter(w)
	}
	return nil, errors.NewUnsupported("compression", string(c))
}

// ReadDocumentFile reads a document, choosing format and compression from the path.
func ReadDocumentFile(path string) (*bdoc.Document, error) {
	var doc *bdoc.Document
	err := readFile(path, func(r io.Reader, f Format) error {
		var err error
		doc, err = DecodeDocument(r, f)
		return err
	})
	return doc, err
}

// WriteDocumentFile writes doc, choosing format and compression from the path.
func WriteDocumentFile(path string, doc *bdoc.Document) error {
	return writeFile(path, func(w io.Writer, f Format) error {
		return EncodeDocument(w, doc, f)
	})
}

// ReadChangeLogFile reads a change log, choosing format and compression from the path.
func ReadChangeLogFile(path string) (*changelog.ChangeLog, error) {
	var log *changelog.ChangeLog
	err := readFile(path, func(r io.Reader, f Format) error {
		var err error
		log, err = DecodeChangeLog(r, f)
		return err
	})
	return log, err
}

// WriteChangeLogFile writes log, choosing format and compression from the path.
func WriteChangeLogFile(path string, log *changelog.ChangeLog) error {
	return writeFile(path, func(w io.Writer, f Format) error {
		return EncodeChangeLog(w, log, f)
	})
}

func readFile(path string, decode func(io.Reader, Format) error) error {
	format, comp, err := Detect(path)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return errors.NewIO("open", path, err)
	}
	defer file.Close()

	r, closer, err := Decompress(file, comp)
	if err != nil {
		return errors.NewIO(string(comp)+" reader", path, err)
	}
	defer closer.Close()

	if err := decode(r, format); err != nil {
		var pe *errors.ParseError
		if errors.As(err, &pe) && pe.Path == "" {
			pe.Path = path
		}
		return err
	}
	return nil
}

// writeFile encodes into a temporary file next to path and renames it into
// place once the compressed stream is complete.
func writeFile(path string, encode func(io.Writer, Format) error) error {
	format, comp, err := Detect(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.NewIO("create", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return errors.NewIO("chmod", path, err)
	}

	cw, err := Compress(tmp, comp)
	if err != nil {
		tmp.Close()
		return errors.NewIO(string(comp)+" writer", path, err)
	}
	if err := encode(cw, format); err != nil {
		cw.Close()
		tmp.Close()
		return err
	}
	if err := cw.Close(); err != nil {
		tmp.Close()
		return errors.NewIO("flush", path, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewIO("close", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.NewIO("rename", path, err)
	}
	return nil
}
