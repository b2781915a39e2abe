// Package fileutil reads and writes files addressed by local paths,
// s3:// uris, or http(s) urls through one interface, so that the rest of
// the codebase never cares where a dataset or model artifact lives.
package fileutil

import (
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/trellis-ml/trellis/trellis-golib/awsutil"
)

// NewReader returns an io.ReadCloser for the object at the given path,
// which may be a local path, an s3:// uri, or an http(s) url.
func NewReader(p string) (io.ReadCloser, error) {
	switch {
	case awsutil.IsS3URI(p):
		return awsutil.NewS3Reader(p)
	case strings.HasPrefix(p, "http://"), strings.HasPrefix(p, "https://"):
		resp, err := http.Get(p)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("GET %s returned %s", p, resp.Status)
		}
		return resp.Body, nil
	default:
		return os.Open(p)
	}
}

// NewCachedReader is like NewReader but s3 objects are cached on local disk,
// so repeated loads of the same dataset or artifact hit the network once.
func NewCachedReader(p string) (io.ReadCloser, error) {
	if awsutil.IsS3URI(p) {
		return awsutil.NewCachedS3Reader(p)
	}
	return NewReader(p)
}

// NewBufferedWriter returns a writer for the given path. Writes to s3 uris
// are buffered locally and uploaded on Close; writes to local paths create
// any missing parent directories.
func NewBufferedWriter(p string) (awsutil.NamedWriteCloser, error) {
	if awsutil.IsS3URI(p) {
		return awsutil.NewBufferedS3Writer(p)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return nil, err
	}
	return os.Create(p)
}

// ReadFile reads the entire object at the given path.
func ReadFile(p string) ([]byte, error) {
	r, err := NewCachedReader(p)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ioutil.ReadAll(r)
}

// WriteFile writes buf to the given path.
func WriteFile(p string, buf []byte) error {
	w, err := NewBufferedWriter(p)
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Exists reports whether the object at the given path can be opened.
func Exists(p string) bool {
	r, err := NewReader(p)
	if err != nil {
		return false
	}
	r.Close()
	return true
}

// Join joins path segments, preserving the scheme and host of uris.
func Join(elem ...string) string {
	if len(elem) == 0 {
		return ""
	}
	u, err := url.Parse(elem[0])
	if err != nil || u.Scheme == "" {
		return filepath.Join(elem...)
	}
	parts := append([]string{u.Path}, elem[1:]...)
	u.Path = path.Join(parts...)
	return u.String()
}

// ListDir lists the entries under the given directory path or s3 prefix.
// For s3 uris the returned names are full s3 uris.
func ListDir(p string) ([]string, error) {
	if awsutil.IsS3URI(p) {
		s3url, err := awsutil.ValidateURI(p)
		if err != nil {
			return nil, err
		}
		prefix := strings.TrimPrefix(s3url.Path, "/")
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		keys, err := awsutil.S3ListObjects(s3url.Host, prefix)
		if err != nil {
			return nil, err
		}
		uris := make([]string, 0, len(keys))
		for _, k := range keys {
			uris = append(uris, fmt.Sprintf("s3://%s/%s", s3url.Host, k))
		}
		return uris, nil
	}

	infos, err := ioutil.ReadDir(p)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, fi := range infos {
		names = append(names, filepath.Join(p, fi.Name()))
	}
	return names, nil
}
