// Package notify delivers best-effort agent notifications over email
// and SMS. The orchestrator never awaits or propagates failures from
// this package; delivery problems are logged and swallowed here.
package notify

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"o42-matching/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// Notifier is the collaborator contract the orchestrator fans out to.
type Notifier interface {
	Notify(ctx context.Context, agentID, subject, body string) error
}

// SESService and SNSService are the narrow AWS surfaces used, kept as
// interfaces so tests can stub the clients.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Config holds channel toggles and sender identities.
type Config struct {
	EmailEnabled bool
	FromEmail    string
	SMSEnabled   bool
	SMSSenderID  string
	AWSRegion    string
	SendTimeout  time.Duration
}

// AgentNotifier resolves an agent's contact details and pushes the
// message on every enabled channel. Channels fail independently; a
// notification counts as sent if at least one channel succeeds.
type AgentNotifier struct {
	config    Config
	db        *sql.DB
	sesClient SESService
	snsClient SNSService
	logger    logger.Logger
}

func NewAgentNotifier(ctx context.Context, cfg Config, db *sql.DB, log logger.Logger) (*AgentNotifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	if cfg.SendTimeout == 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &AgentNotifier{
		config:    cfg,
		db:        db,
		sesClient: ses.NewFromConfig(awsCfg),
		snsClient: sns.NewFromConfig(awsCfg),
		logger:    log.WithFields(map[string]interface{}{"component": "agent-notifier"}),
	}, nil
}

// NewAgentNotifierWithClients injects prebuilt channel clients.
func NewAgentNotifierWithClients(cfg Config, db *sql.DB, sesClient SESService, snsClient SNSService, log logger.Logger) *AgentNotifier {
	if cfg.SendTimeout == 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &AgentNotifier{
		config:    cfg,
		db:        db,
		sesClient: sesClient,
		snsClient: snsClient,
		logger:    log.WithFields(map[string]interface{}{"component": "agent-notifier"}),
	}
}

func (n *AgentNotifier) Notify(ctx context.Context, agentID, subject, body string) error {
	email, phone, err := n.getAgentContact(ctx, agentID)
	if err != nil {
		n.logger.Warn("agent contact lookup failed", map[string]interface{}{
			"agentId": agentID,
			"error":   err.Error(),
		})
		return fmt.Errorf("agent contact lookup: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.config.SendTimeout)
	defer cancel()

	emailSent := false
	smsSent := false

	if n.config.EmailEnabled && email != "" {
		if err := n.sendEmail(ctx, email, subject, body); err != nil {
			n.logger.Error("email send failed", map[string]interface{}{
				"agentId": agentID,
				"error":   err.Error(),
			})
		} else {
			emailSent = true
		}
	}

	if n.config.SMSEnabled && phone != "" {
		if err := n.sendSMS(ctx, phone, body); err != nil {
			n.logger.Error("SMS send failed", map[string]interface{}{
				"agentId": agentID,
				"error":   err.Error(),
			})
		} else {
			smsSent = true
		}
	}

	if !emailSent && !smsSent {
		return fmt.Errorf("no notification channel delivered for agent %s", agentID)
	}
	return nil
}

func (n *AgentNotifier) getAgentContact(ctx context.Context, agentID string) (string, string, error) {
	var email, phone sql.NullString
	err := n.db.QueryRowContext(ctx, `SELECT email, phone FROM agents WHERE id = $1`, agentID).
		Scan(&email, &phone)
	if err != nil {
		return "", "", err
	}
	return email.String, phone.String, nil
}

func (n *AgentNotifier) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
				Html: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.config.FromEmail),
	})
	return err
}

func (n *AgentNotifier) sendSMS(ctx context.Context, phone, body string) error {
	input := &sns.PublishInput{
		Message:     aws.String(body),
		PhoneNumber: aws.String(phone),
	}
	if n.config.SMSSenderID != "" {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(n.config.SMSSenderID),
			},
		}
	}
	_, err := n.snsClient.Publish(ctx, input)
	return err
}
