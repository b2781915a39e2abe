// Package transform runs offline batch inference: a csv of feature rows in,
// a csv of predictions out, one output row per input row in input order.
//
// Input files carry a header row naming their columns. Every feature of the
// artifact's schema must appear; extra columns (a ground-truth label, say)
// are ignored, so both labeled and pure feature files transform cleanly.
package transform

import (
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/trellis-ml/trellis/trellis-go/accel"
	"github.com/trellis-ml/trellis/trellis-go/artifact"
	"github.com/trellis-ml/trellis/trellis-golib/errors"
	"github.com/trellis-ml/trellis/trellis-golib/fileutil"
	"github.com/trellis-ml/trellis/trellis-golib/logf"
)

// Result is one output row of a transform job. Score is the winning
// class's probability.
type Result struct {
	Row   int     `csv:"row"`
	Class int     `csv:"class"`
	Label string  `csv:"label"`
	Score float64 `csv:"score"`
}

// Options configures a transform job.
type Options struct {
	// Input is the feature csv uri.
	Input string
	// Output is the prediction csv uri. Empty skips the write, which
	// callers use when they only want the returned results.
	Output string
	// Accelerator optionally names an accelerator profile to fan the
	// batch across.
	Accelerator string
}

// Run transforms every row of the input through the artifact. Results come
// back in input order and, with an output uri set, are also written there.
func Run(art *artifact.Artifact, opts Options) ([]Result, error) {
	if art == nil {
		return nil, errors.New("no artifact to transform with")
	}
	if opts.Input == "" {
		return nil, errors.New("no input uri")
	}

	profile, err := accel.Lookup(opts.Accelerator)
	if err != nil {
		return nil, err
	}

	features, err := readFeatures(opts.Input, art.Params.Schema.Features)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	preds, err := accel.NewEngine(profile, &art.Params).Predict(features)
	if err != nil {
		return nil, errors.Wrapf(err, "predicting %s", opts.Input)
	}

	results := make([]Result, len(preds))
	for i, p := range preds {
		results[i] = Result{
			Row:   i + 1,
			Class: p.Class,
			Label: p.Label,
			Score: p.Scores[p.Class],
		}
	}

	logf.Named("transform").Printf("transformed %d rows from %s in %s",
		len(results), opts.Input, time.Since(start).Round(time.Millisecond))

	if opts.Output != "" {
		if err := write(opts.Output, results); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// readFeatures reads the input csv into feature vectors ordered by the
// schema's feature names. Rows are numbered from 1, excluding the header.
func readFeatures(uri string, names []string) ([][]float64, error) {
	r, err := fileutil.NewCachedReader(uri)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	rows, err := gocsv.CSVToMaps(r)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", uri)
	}
	if len(rows) == 0 {
		return nil, errors.Errorf("no feature rows in %s", uri)
	}
	for _, name := range names {
		if _, ok := rows[0][name]; !ok {
			return nil, errors.Errorf("%s is missing feature column %q", uri, name)
		}
	}

	features := make([][]float64, len(rows))
	for i, row := range rows {
		vec := make([]float64, len(names))
		for j, name := range names {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[name]), 64)
			if err != nil {
				return nil, errors.Errorf("row %d: feature %s: %v", i+1, name, err)
			}
			vec[j] = v
		}
		features[i] = vec
	}
	return features, nil
}

func write(uri string, results []Result) error {
	w, err := fileutil.NewBufferedWriter(uri)
	if err != nil {
		return err
	}
	if err := gocsv.Marshal(&results, w); err != nil {
		w.Close()
		return errors.Wrapf(err, "writing %s", uri)
	}
	return errors.WrapfOrNil(w.Close(), "writing %s", uri)
}
