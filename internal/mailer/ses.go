package mailer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	appconfig "github.com/ignite/outreach/internal/config"
	"github.com/ignite/outreach/internal/pkg/logger"
)

// sesSender is the SES call surface, narrowed for testing.
type sesSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESTransport sends mail through AWS SES v2 as raw MIME, which preserves
// the In-Reply-To and References headers for threaded sends.
type SESTransport struct {
	client sesSender
	region string
}

// NewSESTransport creates an SES transport with static credentials.
func NewSESTransport(ctx context.Context, cfg appconfig.SESConfig) (*SESTransport, error) {
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &SESTransport{client: sesv2.NewFromConfig(awsCfg), region: cfg.Region}, nil
}

// Send delivers one message. SES has no thread concept, so the returned
// thread id echoes the one the caller supplied.
func (t *SESTransport) Send(ctx context.Context, m OutgoingMail) (*SendResult, error) {
	raw := buildMIME(m)
	out, err := t.client.SendEmail(ctx, &sesv2.SendEmailInput{
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: []byte(raw)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ses send: %w", err)
	}
	logger.Info("ses message sent", "email", m.To, "subject", m.Subject)
	return &SendResult{
		ProviderMessageID: aws.ToString(out.MessageId),
		ThreadID:          m.ThreadID,
	}, nil
}
