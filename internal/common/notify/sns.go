// internal/common/notify/sns.go
package notify

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSClient publishes overdue delay notices to an SNS topic.
type SNSClient struct {
	client   *sns.Client
	topicARN string
}

func NewSNSClient(ctx context.Context, region, topicARN string) (*SNSClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SNSClient{client: sns.NewFromConfig(cfg), topicARN: topicARN}, nil
}

func (s *SNSClient) SendDelayNotice(ctx context.Context, projectID string, hoursSinceUpdate int) error {
	msg := fmt.Sprintf(
		"Project %s: no progress update recorded for %d hours. Automated delay notice issued.",
		projectID, hoursSinceUpdate,
	)

	_, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: &s.topicARN,
		Message:  &msg,
	})
	return err
}
