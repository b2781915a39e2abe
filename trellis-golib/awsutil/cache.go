package awsutil

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
)

// cacheFillReader copies everything read from the underlying reader into a
// temp file, and renames the temp file to the cache destination once the
// stream has been fully consumed. Short or failed reads leave the cache
// untouched.
type cacheFillReader struct {
	src  io.ReadCloser
	tmp  *os.File
	dest string
	err  error
}

func newCacheFillReader(src io.ReadCloser, dest string) (io.ReadCloser, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		src.Close()
		return nil, err
	}
	tmp, err := ioutil.TempFile(filepath.Dir(dest), ".fill")
	if err != nil {
		src.Close()
		return nil, err
	}
	return &cacheFillReader{src: src, tmp: tmp, dest: dest}, nil
}

func (r *cacheFillReader) Read(p []byte) (int, error) {
	n, err := r.src.Read(p)
	if n > 0 {
		if _, werr := r.tmp.Write(p[:n]); werr != nil && r.err == nil {
			r.err = werr
		}
	}
	if err != nil && err != io.EOF && r.err == nil {
		r.err = err
	}
	if err == io.EOF && r.err == nil {
		r.commit()
	}
	return n, err
}

func (r *cacheFillReader) commit() {
	if err := r.tmp.Sync(); err != nil {
		r.err = err
		return
	}
	if err := r.tmp.Close(); err != nil {
		r.err = err
		return
	}
	if err := os.Rename(r.tmp.Name(), r.dest); err != nil {
		r.err = err
	}
}

func (r *cacheFillReader) Close() error {
	// if the stream never reached EOF the temp file is abandoned
	if _, err := os.Stat(r.tmp.Name()); err == nil {
		r.tmp.Close()
		os.Remove(r.tmp.Name())
	}
	return r.src.Close()
}
