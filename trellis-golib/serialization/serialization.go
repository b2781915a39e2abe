// Package serialization encodes and decodes objects based on the extension
// of the destination path. Supported extensions are .json and .gob, each
// optionally followed by .gz for gzip compression. Paths are opened through
// fileutil so objects can live locally or on s3.
package serialization

import (
	"compress/gzip"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/trellis-ml/trellis/trellis-golib/fileutil"
)

// Encode writes obj to the given path using the codec implied by its
// extension.
func Encode(path string, obj interface{}) error {
	w, err := fileutil.NewBufferedWriter(path)
	if err != nil {
		return err
	}

	if err := EncodeTo(w, path, obj); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// EncodeTo writes obj to w using the codec implied by the extension of path.
func EncodeTo(w io.Writer, path string, obj interface{}) error {
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(w)
		if err := encodePlain(gz, strings.TrimSuffix(path, ".gz"), obj); err != nil {
			gz.Close()
			return err
		}
		return gz.Close()
	}
	return encodePlain(w, path, obj)
}

func encodePlain(w io.Writer, path string, obj interface{}) error {
	switch {
	case strings.HasSuffix(path, ".json"):
		return json.NewEncoder(w).Encode(obj)
	case strings.HasSuffix(path, ".gob"):
		return gob.NewEncoder(w).Encode(obj)
	default:
		return fmt.Errorf("unknown serialization extension for %s", path)
	}
}

// Decode reads the object at the given path into obj using the codec
// implied by its extension.
func Decode(path string, obj interface{}) error {
	r, err := fileutil.NewCachedReader(path)
	if err != nil {
		return err
	}
	defer r.Close()
	return DecodeFrom(r, path, obj)
}

// DecodeFrom reads obj from r using the codec implied by the extension of
// path.
func DecodeFrom(r io.Reader, path string, obj interface{}) error {
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return err
		}
		defer gz.Close()
		return decodePlain(gz, strings.TrimSuffix(path, ".gz"), obj)
	}
	return decodePlain(r, path, obj)
}

func decodePlain(r io.Reader, path string, obj interface{}) error {
	switch {
	case strings.HasSuffix(path, ".json"):
		return json.NewDecoder(r).Decode(obj)
	case strings.HasSuffix(path, ".gob"):
		return gob.NewDecoder(r).Decode(obj)
	default:
		return fmt.Errorf("unknown serialization extension for %s", path)
	}
}
