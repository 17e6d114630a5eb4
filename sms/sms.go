// Package sms delivers one-time codes to voters by text message through
// Amazon SNS.
package sms

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/verivote/dreip-backend/log"
)

// Sender delivers a text message to a phone number. The production
// implementation is SNS; tests substitute their own.
type Sender interface {
	Send(ctx context.Context, phoneNumber, text string) error
}

// SnsSender sends text messages through Amazon SNS.
type SnsSender struct {
	client *sns.Client
}

// NewSnsSender builds an SNS sender from static credentials.
func NewSnsSender(ctx context.Context, region, accessKeyID, secretAccessKey string) (*SnsSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SnsSender{client: sns.NewFromConfig(cfg)}, nil
}

// Send publishes the text to the phone number.
func (s *SnsSender) Send(ctx context.Context, phoneNumber, text string) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(phoneNumber),
		Message:     aws.String(text),
	})
	if err != nil {
		return fmt.Errorf("publish sms: %w", err)
	}
	return nil
}

// LogSender logs codes instead of sending them. It backs development
// deployments without SNS credentials.
type LogSender struct{}

// Send logs the message.
func (LogSender) Send(_ context.Context, phoneNumber, text string) error {
	log.Infow("sms delivery disabled, logging instead", "to", phoneNumber, "text", text)
	return nil
}
