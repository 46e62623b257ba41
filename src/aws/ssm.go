package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/aws/aws-sdk-go/service/ssm/ssmiface"
	"github.com/seventv/PipelineNotifier/src/global"
	"github.com/sirupsen/logrus"
)

var ErrEmptyParameter = fmt.Errorf("parameter has no value")

type SsmInstance struct {
	ssm ssmiface.SSMAPI
}

func NewSsm(ctx global.Context) global.AwsSsm {
	config := ctx.Config()

	awsCfg := &aws.Config{
		Region: aws.String(config.Aws.Region),
	}
	// static keys are optional, the default chain covers the lambda role
	if config.Aws.AccessToken != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(config.Aws.AccessToken, config.Aws.SecretKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		logrus.Fatal("failed to create aws session: ", err)
	}

	return &SsmInstance{
		ssm: ssm.New(sess),
	}
}

func NewSsmWithClient(client ssmiface.SSMAPI) global.AwsSsm {
	return &SsmInstance{
		ssm: client,
	}
}

func (s *SsmInstance) GetParameter(ctx context.Context, name string, decrypt bool) (string, error) {
	out, err := s.ssm.GetParameterWithContext(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(decrypt),
	})
	if err != nil {
		return "", fmt.Errorf("get parameter %s: %w", name, err)
	}

	if out.Parameter == nil || aws.StringValue(out.Parameter.Value) == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyParameter, name)
	}

	return aws.StringValue(out.Parameter.Value), nil
}
