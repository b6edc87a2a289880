// Package vertex wraps the managed prediction platform: invoking a deployed
// forecasting endpoint and packaging, uploading, and deploying the model
// behind it.
package vertex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"github.com/goccy/go-json"
	"github.com/googleapis/gax-go/v2"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	ErrBadEndpointName = errors.New("endpoint resource name must look like projects/*/locations/*/endpoints/*")
	ErrNoPointForecast = errors.New("prediction carries no point_forecast")
)

// Forecast is one prediction object, index aligned with the request
// instances. Quantiles holds any additional per-step numeric outputs keyed by
// field name, e.g. p10 through p90.
type Forecast struct {
	PointForecast []float64            `json:"point_forecast"`
	Quantiles     map[string][]float64 `json:"quantiles,omitempty"`
}

// Quantile returns the named quantile series if present.
func (f Forecast) Quantile(name string) ([]float64, bool) {
	q, exists := f.Quantiles[name]
	return q, exists
}

type predictionService interface {
	Predict(ctx context.Context, req *aiplatformpb.PredictRequest, opts ...gax.CallOption) (*aiplatformpb.PredictResponse, error)
	Close() error
}

// Predictor invokes one deployed prediction endpoint.
type Predictor struct {
	service  predictionService
	endpoint string
	log      *logrus.Logger
}

// NewPredictor creates a predictor for a fully qualified endpoint resource
// name. The regional API endpoint is derived from the resource name's
// location.
func NewPredictor(ctx context.Context, endpointName string, log *logrus.Logger, opts ...option.ClientOption) (*Predictor, error) {
	region, err := endpointRegion(endpointName)
	if err != nil {
		return nil, err
	}

	opts = append([]option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("%s-aiplatform.googleapis.com:443", region)),
	}, opts...)
	service, err := aiplatform.NewPredictionClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create prediction client, %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Predictor{
		service:  service,
		endpoint: endpointName,
		log:      log,
	}, nil
}

// Close releases the underlying client.
func (p *Predictor) Close() error {
	return p.service.Close()
}

// Endpoint returns the endpoint resource name this predictor targets.
func (p *Predictor) Endpoint() string {
	return p.endpoint
}

// Predict sends the instances to the endpoint and returns the predictions in
// request order.
func (p *Predictor) Predict(ctx context.Context, instances []Instance) ([]Forecast, error) {
	values := make([]*structpb.Value, 0, len(instances))
	for i, inst := range instances {
		if err := inst.Valid(); err != nil {
			return nil, fmt.Errorf("instance %d, %w", i, err)
		}
		val, err := toValue(inst)
		if err != nil {
			return nil, fmt.Errorf("instance %d, %w", i, err)
		}
		values = append(values, val)
	}

	p.log.WithFields(logrus.Fields{
		"endpoint":  p.endpoint,
		"instances": len(values),
	}).Info("requesting forecast")

	resp, err := p.service.Predict(ctx, &aiplatformpb.PredictRequest{
		Endpoint:  p.endpoint,
		Instances: values,
	})
	if err != nil {
		return nil, fmt.Errorf("prediction request failed, %w", err)
	}

	forecasts := make([]Forecast, 0, len(resp.GetPredictions()))
	for i, pred := range resp.GetPredictions() {
		f, err := parseForecast(pred)
		if err != nil {
			return nil, fmt.Errorf("prediction %d, %w", i, err)
		}
		forecasts = append(forecasts, f)
	}
	return forecasts, nil
}

func toValue(inst Instance) (*structpb.Value, error) {
	raw, err := json.Marshal(inst)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal instance, %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("unable to unmarshal instance fields, %w", err)
	}
	val, err := structpb.NewValue(fields)
	if err != nil {
		return nil, fmt.Errorf("unable to build struct value, %w", err)
	}
	return val, nil
}

func parseForecast(pred *structpb.Value) (Forecast, error) {
	fields, ok := pred.AsInterface().(map[string]any)
	if !ok {
		return Forecast{}, ErrNoPointForecast
	}

	f := Forecast{}
	for name, raw := range fields {
		series, ok := toFloats(raw)
		if !ok {
			continue
		}
		if name == "point_forecast" {
			f.PointForecast = series
			continue
		}
		if f.Quantiles == nil {
			f.Quantiles = make(map[string][]float64)
		}
		f.Quantiles[name] = series
	}
	if f.PointForecast == nil {
		return Forecast{}, ErrNoPointForecast
	}
	return f, nil
}

func toFloats(raw any) ([]float64, bool) {
	vals, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	series := make([]float64, 0, len(vals))
	for _, v := range vals {
		num, ok := v.(float64)
		if !ok {
			return nil, false
		}
		series = append(series, num)
	}
	return series, true
}

func endpointRegion(endpointName string) (string, error) {
	parts := strings.Split(endpointName, "/")
	if len(parts) < 6 || parts[0] != "projects" || parts[2] != "locations" || parts[4] != "endpoints" {
		return "", fmt.Errorf("%q, %w", endpointName, ErrBadEndpointName)
	}
	if parts[3] == "" {
		return "", fmt.Errorf("%q, %w", endpointName, ErrBadEndpointName)
	}
	return parts[3], nil
}
