// Package metrics emits pipeline telemetry to AWS CloudWatch: alert
// generation outcomes, prediction call results, and batch tick durations.
// Emission is best effort; a metrics failure is logged and never surfaces
// into the pipeline.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/maxdesanta/ac02-be-cron-job/internal/alerting"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

const (
	metricAlertGeneration = "AlertGeneration"
	metricPredictionCall  = "PredictionCall"
	metricBatchDuration   = "BatchDuration"

	dimOutcome = "Outcome"
	dimResult  = "Result"
)

// CloudWatchPipelineMetrics publishes pipeline metrics to a CloudWatch
// namespace.
//
// Metrics emitted:
//   - AlertGeneration: Dims {Outcome} -- one count per generation attempt
//   - PredictionCall:  Dims {Result}  -- one count per ML call
//   - BatchDuration:   No dims        -- wall time of one batch tick
type CloudWatchPipelineMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

var _ alerting.GeneratorMetrics = (*CloudWatchPipelineMetrics)(nil)

// NewCloudWatchPipelineMetrics creates a publisher for the given namespace.
func NewCloudWatchPipelineMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchPipelineMetrics {
	return &CloudWatchPipelineMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordAlertOutcome emits one AlertGeneration count with the Outcome
// dimension.
func (m *CloudWatchPipelineMetrics) RecordAlertOutcome(ctx context.Context, outcome alerting.GenerationOutcome) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(metricAlertGeneration),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{
				Name:  aws.String(dimOutcome),
				Value: aws.String(string(outcome)),
			},
		},
	})
}

// RecordPrediction emits one PredictionCall count with Result=success|failure.
func (m *CloudWatchPipelineMetrics) RecordPrediction(ctx context.Context, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(metricPredictionCall),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{
				Name:  aws.String(dimResult),
				Value: aws.String(result),
			},
		},
	})
}

// RecordBatchDuration emits the wall time of one batch tick in milliseconds.
func (m *CloudWatchPipelineMetrics) RecordBatchDuration(ctx context.Context, d time.Duration) {
	m.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(metricBatchDuration),
		Value:      aws.Float64(float64(d.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
	})
}

func (m *CloudWatchPipelineMetrics) put(ctx context.Context, datum cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to put metric data",
			"metric", aws.ToString(datum.MetricName),
			"error", err,
		)
	}
}

// NoopPipelineMetrics discards all metrics. Used in tests and local runs
// where no CloudWatch endpoint is configured.
type NoopPipelineMetrics struct{}

var _ alerting.GeneratorMetrics = NoopPipelineMetrics{}

func (NoopPipelineMetrics) RecordAlertOutcome(context.Context, alerting.GenerationOutcome) {}
func (NoopPipelineMetrics) RecordPrediction(context.Context, bool)                         {}
func (NoopPipelineMetrics) RecordBatchDuration(context.Context, time.Duration)             {}
