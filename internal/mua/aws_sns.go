package mua

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/qqa112811/palhm/internal/core"
	"github.com/qqa112811/palhm/internal/palhmerr"
)

// AwsSns publishes the boot-report body to one or more SNS topic ARNs,
// one Publish call per recipient (original_source aws.py's AwsSnsMUA).
type AwsSns struct {
	profile string
	region  string
	client  *sns.Client
}

// AwsSnsCtor builds an AwsSns MUA from its config fragment: optional
// "profile" and "region", defaulting to the environment's own.
func AwsSnsCtor(param map[string]any) (core.MUA, error) {
	profile, _ := param["profile"].(string)
	region, _ := param["region"].(string)

	ctx := context.Background()
	var optFns []func(*awsconfig.LoadOptions) error
	if profile != "" {
		optFns = append(optFns, awsconfig.WithSharedConfigProfile(profile))
	}
	if region != "" {
		optFns = append(optFns, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("%w: aws-sns: loading AWS config: %s", palhmerr.ErrInvalidConfig, err)
	}

	return &AwsSns{profile: profile, region: region, client: sns.NewFromConfig(cfg)}, nil
}

func (a *AwsSns) Send(ctx *core.GlobalContext, recipients []string, subject string, body []string) error {
	message := strings.Join(body, "\n")
	for _, topicARN := range recipients {
		_, err := a.client.Publish(ctx.Context(), &sns.PublishInput{
			TopicArn: aws.String(topicARN),
			Subject:  aws.String(subject),
			Message:  aws.String(message),
		})
		if err != nil {
			return fmt.Errorf("%w: aws-sns publish to %s: %s", palhmerr.ErrAPIFailure, topicARN, err)
		}
	}
	return nil
}

func (a *AwsSns) String() string { return fmt.Sprintf("aws-sns(%s/%s)", a.profile, a.region) }
