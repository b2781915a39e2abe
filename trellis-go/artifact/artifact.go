// Package artifact defines the trained-model artifact format and the store
// that versions artifacts under a root URI (the platform's model registry).
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/trellis-ml/trellis/trellis-go/dnn"
	"github.com/trellis-ml/trellis/trellis-golib/errors"
	"github.com/trellis-ml/trellis/trellis-golib/serialization"
)

// FormatVersion guards against loading artifacts written by an
// incompatible release.
const FormatVersion = 1

// Meta describes a stored artifact.
type Meta struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	SchemaName    string      `json:"schema_name"`
	CreatedAt     time.Time   `json:"created_at"`
	TrainDataURI  string      `json:"train_data_uri"`
	TrainSteps    int         `json:"train_steps"`
	Metrics       dnn.Metrics `json:"metrics"`
	FormatVersion int         `json:"format_version"`
}

// Artifact is a trained model plus its metadata, the unit the store saves
// and endpoints serve.
type Artifact struct {
	Meta   Meta       `json:"meta"`
	Params dnn.Params `json:"params"`
}

// Validate checks artifact integrity before serving.
func (a *Artifact) Validate() error {
	if a.Meta.FormatVersion != FormatVersion {
		return errors.Errorf("artifact format version %d, this build reads %d",
			a.Meta.FormatVersion, FormatVersion)
	}
	if a.Meta.ID == "" {
		return errors.New("artifact has no id")
	}
	return a.Params.Validate()
}

// Fingerprint derives the artifact id from the trained parameters, so
// identical training outputs land on identical ids.
func Fingerprint(p *dnn.Params) (string, error) {
	buf, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])[:12], nil
}

// Save writes the artifact to a local path or s3 uri. The extension picks
// the codec, .json.gz being the store's convention.
func Save(uri string, a *Artifact) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return errors.WrapfOrNil(serialization.Encode(uri, a), "saving artifact to %s", uri)
}

// Load reads and validates an artifact from a local path or s3 uri.
func Load(uri string) (*Artifact, error) {
	var a Artifact
	if err := serialization.Decode(uri, &a); err != nil {
		return nil, errors.Wrapf(err, "loading artifact from %s", uri)
	}
	if err := a.Validate(); err != nil {
		return nil, errors.Wrapf(err, "artifact at %s", uri)
	}
	return &a, nil
}
