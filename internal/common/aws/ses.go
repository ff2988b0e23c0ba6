// internal/common/aws/ses.go
package aws

import (
	"context"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESClient struct {
	client sesAPI
	from   string
}

func NewSESClient(cfg awssdk.Config, from string) *SESClient {
	return &SESClient{client: ses.NewFromConfig(cfg), from: from}
}

// SendText sends a plain-text email and returns the SES message id.
func (s *SESClient) SendText(ctx context.Context, to, subject, body string) (string, error) {
	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      awssdk.String(s.from),
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: awssdk.String(subject), Charset: awssdk.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: awssdk.String(body), Charset: awssdk.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return "", err
	}
	return awssdk.ToString(out.MessageId), nil
}
