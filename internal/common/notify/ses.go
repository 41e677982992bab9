// internal/common/notify/ses.go
package notify

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESClient sends handover-pack emails through AWS SES.
type SESClient struct {
	client    *ses.Client
	fromEmail string
}

func NewSESClient(ctx context.Context, region, fromEmail string) (*SESClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SESClient{client: ses.NewFromConfig(cfg), fromEmail: fromEmail}, nil
}

func (s *SESClient) SendHandoverPack(ctx context.Context, recipient string, pack HandoverPack) error {
	subject := fmt.Sprintf("Handover pack for project %s", pack.ProjectID)
	body := fmt.Sprintf(
		"Your roofing project handover pack is ready.\n\n"+
			"Contractor: %s\n"+
			"Daily log entries: %d\n"+
			"Evidence categories: %s\n"+
			"Generated: %s\n",
		pack.ContractorName, pack.LogEntryCount,
		strings.Join(pack.Categories, ", "), pack.GeneratedAt,
	)

	_, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: &s.fromEmail,
		Destination: &types.Destination{
			ToAddresses: []string{recipient},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: &subject},
			Body: &types.Body{
				Text: &types.Content{Data: &body},
			},
		},
	})
	return err
}
