package awsutil

import (
	"fmt"
	"io"
	"io/ioutil"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/trellis-ml/trellis/trellis-golib/envutil"
)

var (
	// Region used when the bucket region cannot be discovered.
	fallbackRegion = envutil.GetenvDefault("TRELLIS_AWS_REGION", "us-east-1")
	// Path to the local S3 cache for dataset and artifact reads.
	cacheroot = envutil.GetenvDefault("TRELLIS_S3CACHE", "/var/trellis/s3cache")
)

// IsS3URI returns true if the path is an s3 uri.
func IsS3URI(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

// SetCacheRoot allows for direct configuration of the cacheroot
func SetCacheRoot(path string) {
	cacheroot = path
}

// ValidateURI checks whether the given uri points to S3 and parses it.
func ValidateURI(uri string) (*url.URL, error) {
	s3url, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}
	if s3url.Scheme != "s3" {
		return nil, fmt.Errorf("%s is not an s3 uri", uri)
	}
	if s3url.Host == "" || strings.TrimPrefix(s3url.Path, "/") == "" {
		return nil, fmt.Errorf("s3 uri %s must name a bucket and a key", uri)
	}
	return s3url, nil
}

func client(region string) (*s3.S3, error) {
	sess, err := session.NewSession()
	if err != nil {
		return nil, err
	}
	return s3.New(sess, aws.NewConfig().WithRegion(region)), nil
}

func bucketRegion(uri *url.URL) (string, error) {
	c, err := client(fallbackRegion)
	if err != nil {
		return "", err
	}
	out, err := c.GetBucketLocation(&s3.GetBucketLocationInput{Bucket: &uri.Host})
	if err != nil {
		return "", err
	}
	// an empty location constraint means us-east-1
	if out.LocationConstraint == nil {
		return "us-east-1", nil
	}
	return *out.LocationConstraint, nil
}

// NewS3Reader returns an io.ReadCloser reading the object at
// s3://bucket-name/path/to/object.
func NewS3Reader(uri string) (io.ReadCloser, error) {
	s3url, err := ValidateURI(uri)
	if err != nil {
		return nil, err
	}

	region, err := bucketRegion(s3url)
	if err != nil {
		return nil, fmt.Errorf("unable to determine region for %s: %v", uri, err)
	}

	c, err := client(region)
	if err != nil {
		return nil, err
	}

	key := strings.TrimPrefix(s3url.Path, "/")
	out, err := c.GetObject(&s3.GetObjectInput{
		Bucket: &s3url.Host,
		Key:    &key,
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

// CachePath returns the location where the object will be saved on disk.
func CachePath(s3url *url.URL) string {
	return filepath.Join(cacheroot, s3url.Host, s3url.Path)
}

// NewCachedS3Reader returns an io.ReadCloser for the object at uri, reading
// from the local cache when present. On a cache miss the object is copied to
// the cache as it is streamed, and committed only if the read reaches EOF
// without error.
func NewCachedS3Reader(uri string) (io.ReadCloser, error) {
	s3url, err := ValidateURI(uri)
	if err != nil {
		return nil, err
	}

	local := CachePath(s3url)
	if f, err := os.Open(local); err == nil {
		return f, nil
	}

	r, err := NewS3Reader(uri)
	if err != nil {
		return nil, err
	}
	return newCacheFillReader(r, local)
}

// bufferedS3Writer buffers writes in a local temp file and uploads the whole
// object to S3 on Close.
type bufferedS3Writer struct {
	f     *os.File
	s3uri *url.URL
}

func (w bufferedS3Writer) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

func (w bufferedS3Writer) Name() string {
	return w.s3uri.String()
}

func (w bufferedS3Writer) Close() error {
	defer os.Remove(w.f.Name())
	defer w.f.Close()

	w.f.Sync()
	if _, err := w.f.Seek(0, 0); err != nil {
		return err
	}
	return S3PutObject(w.f, w.s3uri.String())
}

// NamedWriteCloser is a file-like object extending io.WriteCloser with a
// string Name() similar to os.File.Name()
type NamedWriteCloser interface {
	io.WriteCloser
	Name() string
}

// NewBufferedS3Writer returns an io.WriteCloser that writes to disk and
// uploads to S3 on Close
func NewBufferedS3Writer(uri string) (NamedWriteCloser, error) {
	s3url, err := ValidateURI(uri)
	if err != nil {
		return nil, err
	}

	f, err := ioutil.TempFile("", "s3buffer")
	if err != nil {
		return nil, err
	}
	return bufferedS3Writer{f: f, s3uri: s3url}, nil
}

// S3PutObject writes the contents of the reader to the specified s3 URI.
func S3PutObject(r io.ReadSeeker, uri string) error {
	s3url, err := ValidateURI(uri)
	if err != nil {
		return err
	}

	region, err := bucketRegion(s3url)
	if err != nil {
		return fmt.Errorf("unable to determine region for %s: %v", uri, err)
	}

	c, err := client(region)
	if err != nil {
		return err
	}

	key := strings.TrimPrefix(s3url.Path, "/")
	_, err = c.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(s3url.Host),
		Key:    aws.String(key),
		Body:   r,
	})
	return err
}

// S3ListObjects lists the object keys in a bucket under the given prefix.
// Size-zero objects are skipped since they typically correspond to
// directories and are not fetchable.
func S3ListObjects(bucket, prefix string) ([]string, error) {
	uri := &url.URL{Scheme: "s3", Host: bucket, Path: "/" + prefix}
	region, err := bucketRegion(uri)
	if err != nil {
		return nil, err
	}

	c, err := client(region)
	if err != nil {
		return nil, err
	}

	params := &s3.ListObjectsInput{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}

	var keys []string
	err = c.ListObjectsPages(params, func(p *s3.ListObjectsOutput, lastPage bool) bool {
		for _, obj := range p.Contents {
			if *obj.Size == 0 {
				continue
			}
			keys = append(keys, *obj.Key)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("error listing objects in `%s` (%s): %v", bucket, region, err)
	}
	return keys, nil
}
