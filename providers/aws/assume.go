package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// CredentialProvider issues a scoped AWS config for a member account.
// The orchestrator depends on this interface only, so cross-account
// mechanics stay out of the collectors and tests can inject stubs.
type CredentialProvider interface {
	AssumeAccount(ctx context.Context, accountID, roleARN string) (aws.Config, error)
}

// STSCredentialProvider assumes a cross-account role via STS.
type STSCredentialProvider struct {
	client stscreds.AssumeRoleAPIClient
	base   aws.Config
}

// NewSTSCredentialProvider builds a provider from the default credential
// chain of the orchestration (management) account.
func NewSTSCredentialProvider(ctx context.Context) (*STSCredentialProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &STSCredentialProvider{
		client: sts.NewFromConfig(cfg),
		base:   cfg,
	}, nil
}

// AssumeAccount returns a config whose credentials come from assuming
// roleARN for one hour, under a session name embedding the account id
// and date. Credentials are retrieved eagerly so an assumption failure
// surfaces here instead of on the first API call.
func (p *STSCredentialProvider) AssumeAccount(ctx context.Context, accountID, roleARN string) (aws.Config, error) {
	provider := stscreds.NewAssumeRoleProvider(p.client, roleARN, func(o *stscreds.AssumeRoleOptions) {
		o.RoleSessionName = fmt.Sprintf("CostAllocator-%s-%s", accountID, time.Now().Format("20060102"))
		o.Duration = time.Hour
	})

	cfg := p.base.Copy()
	cfg.Credentials = aws.NewCredentialsCache(provider)

	if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
		return aws.Config{}, fmt.Errorf("failed to assume role in account %s: %w", accountID, err)
	}

	return cfg, nil
}
