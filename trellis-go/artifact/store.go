package artifact

import (
	"bytes"
	"log"
	"sort"
	"strings"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/trellis-ml/trellis/trellis-go/dnn"
	"github.com/trellis-ml/trellis/trellis-golib/awsutil"
	"github.com/trellis-ml/trellis/trellis-golib/errors"
	"github.com/trellis-ml/trellis/trellis-golib/fileutil"
	"github.com/trellis-ml/trellis/trellis-golib/logf"
	"github.com/trellis-ml/trellis/trellis-golib/serialization"
)

const (
	modelFile = "model.json.gz"
	metaFile  = "meta.json"
)

// Store versions artifacts under a root uri as
// <root>/<name>/<id>/model.json.gz, with a sibling meta.json so listing
// never has to pull model weights.
type Store struct {
	root string
	log  *log.Logger
}

// NewStore returns a store rooted at a local directory or s3 prefix.
func NewStore(root string) *Store {
	return &Store{root: root, log: logf.Named("artifact-store")}
}

// Root returns the store's root uri.
func (s *Store) Root() string { return s.root }

// Put fingerprints the trained params, fills in the meta id and timestamps,
// and writes the artifact plus its meta under the store root. It returns
// the stored artifact's model uri.
func (s *Store) Put(name string, params *dnn.Params, meta Meta) (*Artifact, string, error) {
	if name == "" {
		return nil, "", errors.New("artifact name is empty")
	}
	if strings.ContainsAny(name, "/ ") {
		return nil, "", errors.Errorf("artifact name %q must not contain slashes or spaces", name)
	}

	id, err := Fingerprint(params)
	if err != nil {
		return nil, "", err
	}

	meta.ID = id
	meta.Name = name
	meta.SchemaName = params.Schema.Name
	meta.FormatVersion = FormatVersion
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}

	art := &Artifact{Meta: meta, Params: *params}
	uri := s.ModelURI(name, id)

	var buf bytes.Buffer
	if err := serialization.EncodeTo(&buf, uri, art); err != nil {
		return nil, "", err
	}
	if err := fileutil.WriteFile(uri, buf.Bytes()); err != nil {
		return nil, "", errors.Wrapf(err, "writing %s", uri)
	}
	if err := serialization.Encode(s.metaURI(name, id), meta); err != nil {
		return nil, "", errors.Wrapf(err, "writing meta for %s/%s", name, id)
	}

	s.log.Printf("stored %s/%s (%s)", name, id, humanize.Bytes(uint64(buf.Len())))
	return art, uri, nil
}

// ModelURI returns the model uri for a stored artifact.
func (s *Store) ModelURI(name, id string) string {
	return fileutil.Join(s.root, name, id, modelFile)
}

func (s *Store) metaURI(name, id string) string {
	return fileutil.Join(s.root, name, id, metaFile)
}

// Get loads the artifact with the given name and id.
func (s *Store) Get(name, id string) (*Artifact, error) {
	return Load(s.ModelURI(name, id))
}

// List returns the metas of every stored artifact, newest first. With a
// non-empty name only that model's versions are returned.
func (s *Store) List(name string) ([]Meta, error) {
	uris, err := s.metaURIs(name)
	if err != nil {
		return nil, err
	}

	metas := make([]Meta, 0, len(uris))
	for _, uri := range uris {
		var m Meta
		if err := serialization.Decode(uri, &m); err != nil {
			return nil, errors.Wrapf(err, "reading %s", uri)
		}
		metas = append(metas, m)
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].CreatedAt.After(metas[j].CreatedAt)
	})
	return metas, nil
}

func (s *Store) metaURIs(name string) ([]string, error) {
	root := s.root
	if name != "" {
		root = fileutil.Join(root, name)
	}

	// s3 listings are recursive already
	if awsutil.IsS3URI(root) {
		entries, err := fileutil.ListDir(root)
		if err != nil {
			return nil, err
		}
		var uris []string
		for _, e := range entries {
			if strings.HasSuffix(e, "/"+metaFile) {
				uris = append(uris, e)
			}
		}
		return uris, nil
	}

	if !fileutil.Exists(root) {
		return nil, nil
	}

	var uris []string
	var walk func(dir string, depth int) error
	walk = func(dir string, depth int) error {
		entries, err := fileutil.ListDir(dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if strings.HasSuffix(e, "/"+metaFile) || strings.HasSuffix(e, "\\"+metaFile) {
				uris = append(uris, e)
			} else if depth > 0 {
				if err := walk(e, depth-1); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(root, 2); err != nil {
		return nil, err
	}
	return uris, nil
}

// Resolve turns a model name or an explicit artifact uri into a loadable
// model uri. A name resolves to its newest stored version.
func (s *Store) Resolve(nameOrURI string) (string, error) {
	if strings.HasSuffix(nameOrURI, ".json") || strings.HasSuffix(nameOrURI, ".json.gz") {
		return nameOrURI, nil
	}

	metas, err := s.List(nameOrURI)
	if err != nil {
		return "", err
	}
	if len(metas) == 0 {
		return "", errors.Errorf("no artifact named %q under %s", nameOrURI, s.root)
	}
	return s.ModelURI(metas[0].Name, metas[0].ID), nil
}
