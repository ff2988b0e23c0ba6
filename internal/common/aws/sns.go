// internal/common/aws/sns.go
package aws

import (
	"context"
	"encoding/json"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSClient struct {
	client   snsAPI
	topicARN string
}

func NewSNSClient(cfg awssdk.Config, topicARN string) *SNSClient {
	return &SNSClient{client: sns.NewFromConfig(cfg), topicARN: topicARN}
}

// PublishJSON publishes payload as a JSON message with an eventType attribute for subscription filters.
func (s *SNSClient) PublishJSON(ctx context.Context, eventType string, payload interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode sns payload: %w", err)
	}
	out, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: awssdk.String(s.topicARN),
		Message:  awssdk.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventType": {DataType: awssdk.String("String"), StringValue: awssdk.String(eventType)},
		},
	})
	if err != nil {
		return "", err
	}
	return awssdk.ToString(out.MessageId), nil
}
