// internal/common/aws/aws_test.go
package aws

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSNS struct{ mock.Mock }

func (m *mockSNS) Publish(ctx context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sns.PublishOutput)
	return out, args.Error(1)
}

type mockSES struct{ mock.Mock }

func (m *mockSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ses.SendEmailOutput)
	return out, args.Error(1)
}

func TestSNSClient_PublishJSON(t *testing.T) {
	api := &mockSNS{}
	client := &SNSClient{client: api, topicARN: "arn:aws:sns:us-east-1:1:decisions"}

	api.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		var body map[string]string
		_ = json.Unmarshal([]byte(*in.Message), &body)
		return *in.TopicArn == "arn:aws:sns:us-east-1:1:decisions" &&
			body["applicationId"] == "app-1" &&
			*in.MessageAttributes["eventType"].StringValue == "SCHOLARSHIP_ASSIGNED"
	})).Return(&sns.PublishOutput{MessageId: awssdk.String("m-1")}, nil)

	id, err := client.PublishJSON(context.Background(), "SCHOLARSHIP_ASSIGNED", map[string]string{"applicationId": "app-1"})
	require.NoError(t, err)
	assert.Equal(t, "m-1", id)
	api.AssertExpectations(t)
}

func TestSESClient_SendText(t *testing.T) {
	api := &mockSES{}
	client := &SESClient{client: api, from: "becas@uni.edu"}

	api.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *ses.SendEmailInput) bool {
		return *in.Source == "becas@uni.edu" && in.Destination.ToAddresses[0] == "ana@uni.edu"
	})).Return(nil, stderrors.New("throttled"))

	_, err := client.SendText(context.Background(), "ana@uni.edu", "Resultado", "Aprobada")
	assert.EqualError(t, err, "throttled")
}
