package dnn

import (
	"github.com/trellis-ml/trellis/trellis-go/dataset"
)

// Metrics summarizes classifier quality on a labeled set.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	N         int     `json:"n"`
	Confusion [][]int `json:"confusion"`
}

// Evaluate scores the network on a labeled set. Confusion[i][j] counts
// examples of true class i predicted as class j.
func Evaluate(p *Params, set *dataset.Set) (Metrics, error) {
	if err := set.Validate(); err != nil {
		return Metrics{}, err
	}

	classes := p.Schema.NumClasses()
	m := Metrics{N: set.Len(), Confusion: make([][]int, classes)}
	for i := range m.Confusion {
		m.Confusion[i] = make([]int, classes)
	}
	if set.Len() == 0 {
		return m, nil
	}

	preds, err := p.PredictBatch(set.Features())
	if err != nil {
		return Metrics{}, err
	}

	var correct int
	for i, pred := range preds {
		want := set.Examples[i].Label
		m.Confusion[want][pred.Class]++
		if pred.Class == want {
			correct++
		}
	}
	m.Accuracy = float64(correct) / float64(set.Len())
	return m, nil
}
