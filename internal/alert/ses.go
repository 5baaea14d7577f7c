// Package alert delivers operator notifications over email. Alerts fire
// on failure paths that need a human (approval channel down, reminder
// attempts exhausted), so callers treat a failed alert as log-and-continue.
package alert

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	appconfig "github.com/copperline/barback/internal/config"
	"github.com/copperline/barback/internal/pkg/logger"
)

// Mailer sends operator alerts through AWS SES.
type Mailer struct {
	client *sesv2.Client
	from   string
	to     string
}

// NewMailer creates an SES-backed alert mailer using the default AWS
// credential chain (IAM role on ECS, shared config locally).
func NewMailer(ctx context.Context, cfg appconfig.AlertsConfig) (*Mailer, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &Mailer{
		client: sesv2.NewFromConfig(awsCfg),
		from:   cfg.From,
		to:     cfg.To,
	}, nil
}

// Alert emails the operator. Subject gets a fixed prefix so inbox rules
// can route on it.
func (m *Mailer) Alert(ctx context.Context, subject, body string) error {
	if m.client == nil {
		return fmt.Errorf("alert mailer not initialized")
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.from),
		Destination:      &types.Destination{ToAddresses: []string{m.to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(Subject(subject)), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	if _, err := m.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("sending alert email: %w", err)
	}

	logger.Info("Operator alert sent", "subject", subject)
	return nil
}

// Subject prefixes an alert subject with the service tag.
func Subject(s string) string {
	return "[barback] " + s
}
