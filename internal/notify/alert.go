package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/rs/zerolog"
)

// Alerter escalates conditions that need an operator, such as an order whose
// stock could not be adjusted.
type Alerter interface {
	Alert(ctx context.Context, subject, body string) error
}

// LogAlerter logs alerts at error level.
type LogAlerter struct {
	logger zerolog.Logger
}

func NewLogAlerter(logger zerolog.Logger) *LogAlerter {
	return &LogAlerter{logger: logger.With().Str("component", "alerts").Logger()}
}

func (a *LogAlerter) Alert(_ context.Context, subject, body string) error {
	a.logger.Error().Str("subject", subject).Msg(body)
	return nil
}

type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESAlerter emails alerts to the operator recipients.
type SESAlerter struct {
	client     sesAPI
	sender     string
	recipients []string
	logger     zerolog.Logger
}

// NewSESAlerter builds an alerter from the default AWS credential chain.
func NewSESAlerter(ctx context.Context, region, sender string, recipients []string, logger zerolog.Logger) (*SESAlerter, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newSESAlerter(ses.NewFromConfig(awsCfg), sender, recipients, logger), nil
}

func newSESAlerter(client sesAPI, sender string, recipients []string, logger zerolog.Logger) *SESAlerter {
	return &SESAlerter{
		client:     client,
		sender:     sender,
		recipients: recipients,
		logger:     logger.With().Str("component", "alerts").Logger(),
	}
}

func (a *SESAlerter) Alert(ctx context.Context, subject, body string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(a.sender),
		Destination: &types.Destination{
			ToAddresses: a.recipients,
		},
		Message: &types.Message{
			Subject: &types.Content{
				Charset: aws.String("UTF-8"),
				Data:    aws.String("[petshop-kart] " + subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Charset: aws.String("UTF-8"),
					Data:    aws.String(body),
				},
			},
		},
	}

	if _, err := a.client.SendEmail(ctx, input); err != nil {
		a.logger.Error().Err(err).Str("subject", subject).Msg("failed to send alert email")
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	a.logger.Info().Str("subject", subject).Int("recipients", len(a.recipients)).Msg("alert email sent")
	return nil
}
