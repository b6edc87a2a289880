package vertex

import (
	"context"
	"testing"

	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakePredictionService struct {
	req  *aiplatformpb.PredictRequest
	resp *aiplatformpb.PredictResponse
	err  error
}

func (f *fakePredictionService) Predict(_ context.Context, req *aiplatformpb.PredictRequest, _ ...gax.CallOption) (*aiplatformpb.PredictResponse, error) {
	f.req = req
	return f.resp, f.err
}

func (f *fakePredictionService) Close() error { return nil }

func prediction(t *testing.T, fields map[string]any) *structpb.Value {
	t.Helper()
	val, err := structpb.NewValue(fields)
	require.NoError(t, err)
	return val
}

func TestPredict(t *testing.T) {
	fake := &fakePredictionService{
		resp: &aiplatformpb.PredictResponse{
			Predictions: []*structpb.Value{
				prediction(t, map[string]any{
					"point_forecast": []any{1.0, 2.0, 3.0},
					"p10":            []any{0.5, 1.5, 2.5},
					"p90":            []any{1.5, 2.5, 3.5},
				}),
			},
		},
	}
	p := &Predictor{
		service:  fake,
		endpoint: "projects/p/locations/us-central1/endpoints/123",
		log:      logrus.New(),
	}

	forecasts, err := p.Predict(context.Background(), []Instance{
		{Input: []float64{1, 2, 3, 4, 5}, Horizon: 3, Timestamp: []string{"2024-01-01T00:00:00Z"}},
	})
	require.NoError(t, err)
	require.Len(t, forecasts, 1)
	assert.Equal(t, []float64{1, 2, 3}, forecasts[0].PointForecast)

	p10, exists := forecasts[0].Quantile("p10")
	require.True(t, exists)
	assert.Equal(t, []float64{0.5, 1.5, 2.5}, p10)

	// request carried the endpoint and the instance fields
	require.NotNil(t, fake.req)
	assert.Equal(t, "projects/p/locations/us-central1/endpoints/123", fake.req.GetEndpoint())
	require.Len(t, fake.req.GetInstances(), 1)
	sent := fake.req.GetInstances()[0].GetStructValue().AsMap()
	assert.Equal(t, []any{1.0, 2.0, 3.0, 4.0, 5.0}, sent["input"])
	assert.Equal(t, 3.0, sent["horizon"])
}

func TestPredictEmptyInput(t *testing.T) {
	p := &Predictor{service: &fakePredictionService{}, endpoint: "e", log: logrus.New()}

	_, err := p.Predict(context.Background(), []Instance{{}})
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestPredictMissingPointForecast(t *testing.T) {
	fake := &fakePredictionService{
		resp: &aiplatformpb.PredictResponse{
			Predictions: []*structpb.Value{
				prediction(t, map[string]any{"other": []any{1.0}}),
			},
		},
	}
	p := &Predictor{service: fake, endpoint: "e", log: logrus.New()}

	_, err := p.Predict(context.Background(), []Instance{{Input: []float64{1}}})
	assert.ErrorIs(t, err, ErrNoPointForecast)
}

func TestEndpointRegion(t *testing.T) {
	testData := map[string]struct {
		name   string
		region string
		err    error
	}{
		"valid": {
			name:   "projects/my-project/locations/us-central1/endpoints/1234567890",
			region: "us-central1",
		},
		"short": {
			name: "endpoints/1234567890",
			err:  ErrBadEndpointName,
		},
		"wrong resource": {
			name: "projects/p/locations/us-central1/models/123",
			err:  ErrBadEndpointName,
		},
		"empty location": {
			name: "projects/p/locations//endpoints/123",
			err:  ErrBadEndpointName,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			region, err := endpointRegion(td.name)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, td.region, region)
		})
	}
}
