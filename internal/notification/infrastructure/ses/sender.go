package ses

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/caprisoft/storefront/internal/notification/domain"
)

// API is the subset of the SES client used here.
type API interface {
	SendEmail(ctx context.Context, in *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type Sender struct {
	client API
	from   string
}

func NewSender(client API, from string) *Sender {
	return &Sender{client: client, from: from}
}

// NewFromEnv builds a sender from the default AWS credential chain.
func NewFromEnv(ctx context.Context, region, from string) (*Sender, error) {
	if from == "" {
		return nil, errors.New("sender email address is not configured")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSender(ses.NewFromConfig(cfg), from), nil
}

func (s *Sender) Send(ctx context.Context, msg domain.Message) error {
	if msg.To == "" {
		return errors.New("recipient email address is empty")
	}
	input := &ses.SendEmailInput{
		Source: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{Charset: aws.String("UTF-8"), Data: aws.String(msg.Subject)},
			Body: &types.Body{
				Html: &types.Content{Charset: aws.String("UTF-8"), Data: aws.String(msg.HTML)},
				Text: &types.Content{Charset: aws.String("UTF-8"), Data: aws.String(msg.Text)},
			},
		},
	}
	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}
