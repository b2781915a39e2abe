package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/trellis-ml/trellis/trellis-golib/errors"
	"github.com/trellis-ml/trellis/trellis-golib/fileutil"
)

// The CSV layout puts dataset metadata on the first row:
//
//	<numRows>,<numFeatures>,<class0>,<class1>,...
//
// and one example per following row:
//
//	f1,...,fN,label
//
// with label an integer index into the class list.

// ReadCSV decodes a dataset from the metadata-headed CSV format. Feature
// columns are given synthetic names; callers with a richer schema can
// replace it afterwards, as Open does for the builtin Iris schema.
func ReadCSV(r io.Reader) (*Set, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("missing metadata header")
	}
	if err != nil {
		return nil, err
	}
	if len(header) < 3 {
		return nil, errors.Errorf("metadata header has %d fields, need <rows>,<features>,<classes...>", len(header))
	}

	numRows, err := strconv.Atoi(header[0])
	if err != nil {
		return nil, errors.Errorf("metadata row count %q is not an integer", header[0])
	}
	numFeatures, err := strconv.Atoi(header[1])
	if err != nil {
		return nil, errors.Errorf("metadata feature count %q is not an integer", header[1])
	}
	if numFeatures < 1 {
		return nil, errors.Errorf("metadata declares %d features", numFeatures)
	}

	schema := Schema{
		Features: make([]string, numFeatures),
		Classes:  append([]string{}, header[2:]...),
	}
	for i := range schema.Features {
		schema.Features[i] = fmt.Sprintf("f%d", i+1)
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	set := &Set{Schema: schema, Examples: make([]Example, 0, numRows)}
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		ex, err := parseExample(record, schema)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		set.Examples = append(set.Examples, ex)
	}

	if len(set.Examples) != numRows {
		return nil, errors.Errorf("metadata declares %d rows, file has %d", numRows, len(set.Examples))
	}
	return set, nil
}

func parseExample(record []string, schema Schema) (Example, error) {
	if len(record) != schema.NumFeatures()+1 {
		return Example{}, errors.Errorf("row has %d fields, expected %d features + label",
			len(record), schema.NumFeatures())
	}

	ex := Example{Features: make([]float64, schema.NumFeatures())}
	for i := 0; i < schema.NumFeatures(); i++ {
		v, err := strconv.ParseFloat(record[i], 64)
		if err != nil {
			return Example{}, errors.Errorf("field %d (%q) is not numeric", i+1, record[i])
		}
		ex.Features[i] = v
	}

	label, err := strconv.Atoi(record[len(record)-1])
	if err != nil {
		return Example{}, errors.Errorf("label %q is not an integer", record[len(record)-1])
	}
	if label < 0 || label >= schema.NumClasses() {
		return Example{}, errors.Errorf("label %d outside [0,%d)", label, schema.NumClasses())
	}
	ex.Label = label
	return ex, nil
}

// WriteCSV encodes the set in the metadata-headed CSV format.
func WriteCSV(w io.Writer, s *Set) error {
	cw := csv.NewWriter(w)

	header := []string{
		strconv.Itoa(s.Len()),
		strconv.Itoa(s.Schema.NumFeatures()),
	}
	header = append(header, s.Schema.Classes...)
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, s.Schema.NumFeatures()+1)
	for _, ex := range s.Examples {
		for i, v := range ex.Features {
			record[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		record[len(record)-1] = strconv.Itoa(ex.Label)
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Open loads a dataset from a local path, s3:// uri, or http(s) url. When
// the class list in the file matches the builtin Iris schema, the canonical
// feature names are attached.
func Open(uri string) (*Set, error) {
	r, err := fileutil.NewCachedReader(uri)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", uri)
	}
	defer r.Close()

	set, err := ReadCSV(r)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", uri)
	}

	if iris := Iris(); sameClasses(set.Schema, iris) {
		set.Schema = iris
	}
	return set, nil
}

func sameClasses(a, b Schema) bool {
	if len(a.Classes) != len(b.Classes) || len(a.Features) != len(b.Features) {
		return false
	}
	for i := range a.Classes {
		if a.Classes[i] != b.Classes[i] {
			return false
		}
	}
	return true
}
