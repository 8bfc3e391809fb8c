package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/listkeeper/internal/domain"
)

// SESConfig holds AWS SES v2 credentials.
type SESConfig struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
}

// sesAPI is the slice of the SES v2 client the source needs.
type sesAPI interface {
	ListSuppressedDestinations(ctx context.Context, params *sesv2.ListSuppressedDestinationsInput, optFns ...func(*sesv2.Options)) (*sesv2.ListSuppressedDestinationsOutput, error)
}

// SESSource reads the account-level suppression list from AWS SES v2.
// SES only tracks hard bounces and complaints there, so soft bounces come
// from the HTTP feed instead.
type SESSource struct {
	client sesAPI
}

// NewSESSource creates an SES-backed bounce source.
func NewSESSource(ctx context.Context, cfg SESConfig) (*SESSource, error) {
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &SESSource{client: sesv2.NewFromConfig(awsCfg)}, nil
}

// FetchBounces pages through SES suppressed destinations updated since the
// cutoff. The account suppression list is not per-list, so listExternalID
// is ignored here.
func (s *SESSource) FetchBounces(ctx context.Context, _ string, since time.Time) ([]domain.BounceEvent, error) {
	var events []domain.BounceEvent
	var nextToken *string

	for {
		out, err := s.client.ListSuppressedDestinations(ctx, &sesv2.ListSuppressedDestinationsInput{
			StartDate: aws.Time(since),
			PageSize:  aws.Int32(1000),
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("listing suppressed destinations: %w", err)
		}

		for _, dest := range out.SuppressedDestinationSummaries {
			bounceType := domain.BounceHard
			if dest.Reason == types.SuppressionListReasonComplaint {
				bounceType = domain.BounceComplaint
			}
			events = append(events, domain.BounceEvent{
				Email:      aws.ToString(dest.EmailAddress),
				BounceType: bounceType,
				BouncedAt:  aws.ToTime(dest.LastUpdateTime),
				Diagnostic: fmt.Sprintf("ses suppression list: %s", dest.Reason),
			})
		}

		if out.NextToken == nil {
			return events, nil
		}
		nextToken = out.NextToken
	}
}
