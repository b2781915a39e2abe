package platform

import (
	"context"

	"github.com/trellis-ml/trellis/trellis-go/dnn"
	"github.com/trellis-ml/trellis/trellis-go/serve"
	"github.com/trellis-ml/trellis/trellis-golib/errors"
)

// Predictor is a handle on a deployed endpoint.
type Predictor struct {
	EndpointName string

	sess *Session
}

// NewPredictor binds to an already-deployed endpoint.
func NewPredictor(sess *Session, endpointName string) *Predictor {
	return &Predictor{EndpointName: endpointName, sess: sess}
}

// Predict classifies a single feature vector.
func (p *Predictor) Predict(ctx context.Context, features []float64) (dnn.Prediction, error) {
	preds, err := p.PredictBatch(ctx, [][]float64{features})
	if err != nil {
		return dnn.Prediction{}, err
	}
	if len(preds) != 1 {
		return dnn.Prediction{}, errors.Errorf("endpoint %s returned %d predictions for one instance", p.EndpointName, len(preds))
	}
	return preds[0], nil
}

// PredictBatch classifies a batch of feature vectors, preserving order.
func (p *Predictor) PredictBatch(ctx context.Context, instances [][]float64) ([]dnn.Prediction, error) {
	if len(instances) == 0 {
		return nil, errors.Wrapf(ErrBadRequest, "no instances")
	}

	if p.sess.Local() {
		srv, err := p.sess.server()
		if err != nil {
			return nil, err
		}
		return srv.Registry.Invoke(p.EndpointName, instances)
	}

	var resp invokeResponse
	err := p.sess.call(ctx, "POST", "/v1/endpoints/"+p.EndpointName+"/invocations", invokeRequest{Instances: instances}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Predictions, nil
}

// Describe fetches the endpoint's current description.
func (p *Predictor) Describe(ctx context.Context) (serve.EndpointInfo, error) {
	return p.sess.DescribeEndpoint(ctx, p.EndpointName)
}

// Delete tears the endpoint down. Deleting twice returns ErrNotFound.
func (p *Predictor) Delete(ctx context.Context) error {
	if p.sess.Local() {
		srv, err := p.sess.server()
		if err != nil {
			return err
		}
		return srv.Registry.Delete(p.EndpointName)
	}
	return p.sess.call(ctx, "DELETE", "/v1/endpoints/"+p.EndpointName, nil, nil)
}
