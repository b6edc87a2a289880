package vertex

import (
	"context"
	"fmt"
	"strconv"
	"time"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// ModelSpec describes a model upload into the registry: where the staged
// artifacts live and how the serving container is parameterized.
type ModelSpec struct {
	DisplayName  string
	ArtifactURI  string
	ImageURI     string
	ModelID      string
	DeploySource string
	Backend      string
	Horizon      int
}

// DeploySpec describes how an uploaded model is attached to an endpoint.
type DeploySpec struct {
	MachineType      string
	AcceleratorType  string
	AcceleratorCount int
	ServiceAccount   string
	MinReplicas      int
	Timeout          time.Duration
}

// Deployer packages models and creates and populates prediction endpoints.
type Deployer struct {
	models    *aiplatform.ModelClient
	endpoints *aiplatform.EndpointClient
	projectID string
	region    string
	log       *logrus.Logger

	// timestamps display names
	now func() time.Time
}

// NewDeployer creates model and endpoint clients for the project and region.
func NewDeployer(ctx context.Context, projectID, region string, log *logrus.Logger, opts ...option.ClientOption) (*Deployer, error) {
	opts = append([]option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("%s-aiplatform.googleapis.com:443", region)),
	}, opts...)

	models, err := aiplatform.NewModelClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create model client, %w", err)
	}
	endpoints, err := aiplatform.NewEndpointClient(ctx, opts...)
	if err != nil {
		models.Close()
		return nil, fmt.Errorf("unable to create endpoint client, %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Deployer{
		models:    models,
		endpoints: endpoints,
		projectID: projectID,
		region:    region,
		log:       log,
		now:       time.Now,
	}, nil
}

// Close releases both underlying clients.
func (d *Deployer) Close() error {
	err := d.models.Close()
	if cerr := d.endpoints.Close(); err == nil {
		err = cerr
	}
	return err
}

func (d *Deployer) parent() string {
	return fmt.Sprintf("projects/%s/locations/%s", d.projectID, d.region)
}

func (d *Deployer) stamped(displayName string) string {
	return fmt.Sprintf("%s-%s", displayName, d.now().Format("20060102150405"))
}

// UploadModel registers the staged model artifacts with the serving container
// and returns the model resource name.
func (d *Deployer) UploadModel(ctx context.Context, spec ModelSpec) (string, error) {
	displayName := d.stamped(spec.DisplayName)
	d.log.WithField("model", displayName).Info("uploading model")

	op, err := d.models.UploadModel(ctx, &aiplatformpb.UploadModelRequest{
		Parent: d.parent(),
		Model: &aiplatformpb.Model{
			DisplayName: displayName,
			ArtifactUri: spec.ArtifactURI,
			ContainerSpec: &aiplatformpb.ModelContainerSpec{
				ImageUri:     spec.ImageURI,
				PredictRoute: "/predict",
				HealthRoute:  "/health",
				Ports: []*aiplatformpb.Port{
					{ContainerPort: 8080},
				},
				Env: []*aiplatformpb.EnvVar{
					{Name: "MODEL_ID", Value: spec.ModelID},
					{Name: "DEPLOY_SOURCE", Value: spec.DeploySource},
					{Name: "TIMESFM_HORIZON", Value: strconv.Itoa(spec.Horizon)},
					{Name: "TIMESFM_BACKEND", Value: spec.Backend},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("unable to upload model, %w", err)
	}

	resp, err := op.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("model upload did not complete, %w", err)
	}
	d.log.WithField("model", resp.GetModel()).Info("model uploaded")
	return resp.GetModel(), nil
}

// CreateEndpoint creates a prediction endpoint with a timestamped display
// name and returns its resource name.
func (d *Deployer) CreateEndpoint(ctx context.Context, displayName string, dedicated bool) (string, error) {
	endpointName := fmt.Sprintf("%s-endpoint", d.stamped(displayName))
	d.log.WithField("endpoint", endpointName).Info("creating endpoint")

	op, err := d.endpoints.CreateEndpoint(ctx, &aiplatformpb.CreateEndpointRequest{
		Parent: d.parent(),
		Endpoint: &aiplatformpb.Endpoint{
			DisplayName:              endpointName,
			DedicatedEndpointEnabled: dedicated,
		},
	})
	if err != nil {
		return "", fmt.Errorf("unable to create endpoint, %w", err)
	}

	endpoint, err := op.Wait(ctx)
	if err != nil {
		return "", fmt.Errorf("endpoint creation did not complete, %w", err)
	}
	d.log.WithField("endpoint", endpoint.GetName()).Info("endpoint created")
	return endpoint.GetName(), nil
}

// DeployModel attaches an uploaded model to an endpoint with dedicated
// resources and routes all traffic to it.
func (d *Deployer) DeployModel(ctx context.Context, endpointName, modelName string, spec DeploySpec) error {
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}
	minReplicas := int32(spec.MinReplicas)
	if minReplicas <= 0 {
		minReplicas = 1
	}

	d.log.WithFields(logrus.Fields{
		"endpoint": endpointName,
		"model":    modelName,
		"machine":  spec.MachineType,
	}).Info("deploying model")

	op, err := d.endpoints.DeployModel(ctx, &aiplatformpb.DeployModelRequest{
		Endpoint: endpointName,
		DeployedModel: &aiplatformpb.DeployedModel{
			Model: modelName,
			PredictionResources: &aiplatformpb.DeployedModel_DedicatedResources{
				DedicatedResources: &aiplatformpb.DedicatedResources{
					MachineSpec: &aiplatformpb.MachineSpec{
						MachineType:      spec.MachineType,
						AcceleratorType:  acceleratorType(spec.AcceleratorType),
						AcceleratorCount: int32(spec.AcceleratorCount),
					},
					MinReplicaCount: minReplicas,
				},
			},
			ServiceAccount:      spec.ServiceAccount,
			EnableAccessLogging: true,
		},
		TrafficSplit: map[string]int32{"0": 100},
	})
	if err != nil {
		return fmt.Errorf("unable to deploy model, %w", err)
	}
	if _, err := op.Wait(ctx); err != nil {
		return fmt.Errorf("model deployment did not complete, %w", err)
	}

	d.log.WithField("endpoint", endpointName).Info("model deployed")
	return nil
}

func acceleratorType(name string) aiplatformpb.AcceleratorType {
	if code, exists := aiplatformpb.AcceleratorType_value[name]; exists {
		return aiplatformpb.AcceleratorType(code)
	}
	return aiplatformpb.AcceleratorType_ACCELERATOR_TYPE_UNSPECIFIED
}
