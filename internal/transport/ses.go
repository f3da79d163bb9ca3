package transport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SESOptions configures the ses transport.
type SESOptions struct {
	Region             string `mapstructure:"region"`
	AccessKeyID        string `mapstructure:"access_key_id"`
	SecretAccessKey    string `mapstructure:"secret_access_key"`
	SecretAccessKeyKey string `mapstructure:"secret_access_key_key"`
	ConfigurationSet   string `mapstructure:"configuration_set"`
}

// SendEmailAPI is the subset of the SES v2 client used by SES.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SES submits raw MIME messages through the AWS SES v2 API.
type SES struct {
	client           SendEmailAPI
	configurationSet string
}

// NewSESWithClient returns an ses transport using client.
func NewSESWithClient(client SendEmailAPI, configurationSet string) *SES {
	return &SES{client: client, configurationSet: configurationSet}
}

func newSES(ctx context.Context, opts Options, secrets Secrets) (Transport, error) {
	var o SESOptions
	if err := decode(opts, &o); err != nil {
		return nil, err
	}
	key, err := secret(secrets, o.SecretAccessKey, o.SecretAccessKeyKey)
	if err != nil {
		return nil, err
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if o.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(o.Region))
	}
	if o.AccessKeyID != "" && key != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKeyID, key, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewSESWithClient(sesv2.NewFromConfig(cfg), o.ConfigurationSet), nil
}

// Name returns the transport name.
func (s *SES) Name() string {
	return "ses"
}

// Send submits msg as raw content with an explicit destination so Bcc
// recipients are delivered.
func (s *SES) Send(ctx context.Context, env Envelope, msg []byte) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(env.From),
		Destination:      &types.Destination{ToAddresses: env.To},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: msg},
		},
	}
	if s.configurationSet != "" {
		input.ConfigurationSetName = aws.String(s.configurationSet)
	}

	out, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("SES send: %w", err)
	}
	slog.Info("message submitted", "transport", s.Name(), "message_id", aws.ToString(out.MessageId))
	return nil
}
