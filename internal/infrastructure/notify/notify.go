package notify

import (
	"context"
	"encoding/json"
	"fmt"

	appDomain "accelerator-portal/internal/domain/application"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sesTypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.uber.org/zap"
)

// EmailSender is the subset of *ses.Client used here.
type EmailSender interface {
	SendEmail(ctx context.Context, in *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Publisher is the subset of *sns.Client used here.
type Publisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Nop struct{}

func (Nop) ApplicationReceived(context.Context, *appDomain.Application) error { return nil }
func (Nop) StatusChanged(context.Context, *appDomain.Application) error       { return nil }

// AWS sends applicant emails through SES and publishes new-application
// alerts to an SNS topic. Either side is skipped when unconfigured.
type AWS struct {
	mail     EmailSender
	pub      Publisher
	from     string
	topicARN string
	log      *zap.Logger
}

func NewAWS(mail EmailSender, pub Publisher, from, topicARN string, log *zap.Logger) *AWS {
	if log == nil {
		log = zap.NewNop()
	}
	return &AWS{mail: mail, pub: pub, from: from, topicARN: topicARN, log: log}
}

// NewAWSFromRegion loads the default credential chain for region.
func NewAWSFromRegion(ctx context.Context, region, from, topicARN string, log *zap.Logger) (*AWS, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return NewAWS(ses.NewFromConfig(cfg), sns.NewFromConfig(cfg), from, topicARN, log), nil
}

func (n *AWS) ApplicationReceived(ctx context.Context, a *appDomain.Application) error {
	if err := n.email(ctx, a.Email,
		fmt.Sprintf("We received the application for %s", a.StartupName),
		fmt.Sprintf("Hello,\n\nThank you for applying with %s. Your application is now pending review.\n", a.StartupName),
	); err != nil {
		return err
	}
	if n.pub == nil || n.topicARN == "" {
		return nil
	}
	msg, err := json.Marshal(map[string]string{
		"event":         "application.received",
		"applicationId": a.ApplicationID,
		"startupName":   a.StartupName,
		"sector":        a.Sector,
	})
	if err != nil {
		return err
	}
	_, err = n.pub.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String("New accelerator application"),
		Message:  aws.String(string(msg)),
	})
	if err != nil {
		return fmt.Errorf("notify: publish: %w", err)
	}
	n.log.Debug("notify: published new application", zap.String("application_id", a.ApplicationID))
	return nil
}

func (n *AWS) StatusChanged(ctx context.Context, a *appDomain.Application) error {
	return n.email(ctx, a.Email,
		fmt.Sprintf("Update on the application for %s", a.StartupName),
		fmt.Sprintf("Hello,\n\nThe application for %s is now %s.\n", a.StartupName, a.Status),
	)
}

func (n *AWS) email(ctx context.Context, to, subject, body string) error {
	if n.mail == nil || n.from == "" || to == "" {
		return nil
	}
	_, err := n.mail.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(n.from),
		Destination: &sesTypes.Destination{ToAddresses: []string{to}},
		Message: &sesTypes.Message{
			Subject: &sesTypes.Content{Data: aws.String(subject)},
			Body:    &sesTypes.Body{Text: &sesTypes.Content{Data: aws.String(body)}},
		},
	})
	if err != nil {
		return fmt.Errorf("notify: send email: %w", err)
	}
	return nil
}
