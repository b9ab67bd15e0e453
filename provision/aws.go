package provision

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudfront"
	"github.com/aws/aws-sdk-go/service/cloudwatchevents"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/elb"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/route53"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/sns"

	"gitlab.com/z0mbie42/rz-go/v2"
	"gitlab.com/z0mbie42/rz-go/v2/log"
)

const (
	// Fallback region for the global listing calls issued before the
	// operator has picked one.
	bootstrapRegion = "us-east-1"

	lambdaRuntime     = "python2.7"
	lambdaHandler     = "lambda_function.lambda_handler"
	lambdaDescription = "Lambda Function for AWS Lets-Encrypt"
	lambdaTimeout     = 30
	lambdaMemoryMB    = 128

	notificationTopicName = "lambda-letsencrypt-notify"
	rolePolicyName        = "lambda-letsencrypt"

	// Bounds for the role propagation poll.
	roleWaitInitialDelay = 1 * time.Second
	roleWaitMaxTotal     = 30 * time.Second
	roleSettleDelay      = 3 * time.Second
)

// The trust policy letting Lambda assume the role we create.
const lambdaAssumeRolePolicy = `{
    "Version": "2012-10-17",
    "Statement": [
        {
            "Effect": "Allow",
            "Principal": {"Service": "lambda.amazonaws.com"},
            "Action": "sts:AssumeRole"
        }
    ]
}`

// AWS implements Provisioner against the live platform.
type AWS struct {
	sess   *session.Session
	region string
}

func NewAWS() (
	*AWS,
	error,
) {
	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		log.Error(
			"Error starting AWS session",
			rz.Err(err),
		)
		return nil, err
	}

	region := aws.StringValue(sess.Config.Region)

	return &AWS{
		sess:   sess,
		region: region,
	}, nil
}

func (p *AWS) SetRegion(
	region string,
) {
	p.region = region
}

// config returns the per-call SDK config, pinned to the chosen region.
func (p *AWS) config() *aws.Config {
	region := p.region
	if region == "" {
		region = bootstrapRegion
	}
	return aws.NewConfig().WithRegion(region)
}

func (p *AWS) ListRegions() (
	[]string,
	error,
) {
	svc := ec2.New(p.sess, p.config())

	drOutput, err := svc.DescribeRegions(&ec2.DescribeRegionsInput{})
	if err != nil {
		log.Error(
			"Error calling EC2.DescribeRegions",
			rz.Err(err),
		)
		return nil, err
	}

	var regions []string
	for _, region := range drOutput.Regions {
		regions = append(regions, aws.StringValue(region.RegionName))
	}

	return regions, nil
}

func (p *AWS) ListBuckets() (
	[]string,
	error,
) {
	svc := s3.New(p.sess, p.config())

	lbOutput, err := svc.ListBuckets(&s3.ListBucketsInput{})
	if err != nil {
		log.Error(
			"Error calling S3.ListBuckets",
			rz.Err(err),
		)
		return nil, err
	}

	var buckets []string
	for _, bucket := range lbOutput.Buckets {
		buckets = append(buckets, aws.StringValue(bucket.Name))
	}

	return buckets, nil
}

func (p *AWS) createBucket(
	name string,
) error {
	svc := s3.New(p.sess, p.config())

	cbParams := &s3.CreateBucketInput{
		Bucket: aws.String(name),
	}
	// us-east-1 rejects an explicit location constraint.
	if p.region != "" && p.region != "us-east-1" {
		cbParams.CreateBucketConfiguration = &s3.CreateBucketConfiguration{
			LocationConstraint: aws.String(p.region),
		}
	}

	log.Debug(
		"Calling S3.CreateBucket",
		rz.Any("parameters", cbParams),
	)
	if _, err := svc.CreateBucket(cbParams); err != nil {
		log.Error(
			"Error calling S3.CreateBucket",
			rz.Err(err),
			rz.String("s3_bucket", name),
		)
		return err
	}

	return nil
}

func (p *AWS) CreateBucket(
	name string,
) error {
	return p.createBucket(name)
}

// CreateWebsiteBucket creates a bucket configured as a public static
// website, as required for serving http-01 challenge responses through
// CloudFront.
func (p *AWS) CreateWebsiteBucket(
	name string,
) error {
	if err := p.createBucket(name); err != nil {
		return err
	}

	svc := s3.New(p.sess, p.config())

	pbwParams := &s3.PutBucketWebsiteInput{
		Bucket: aws.String(name),
		WebsiteConfiguration: &s3.WebsiteConfiguration{
			IndexDocument: &s3.IndexDocument{
				Suffix: aws.String("index.html"),
			},
		},
	}
	if _, err := svc.PutBucketWebsite(pbwParams); err != nil {
		log.Error(
			"Error calling S3.PutBucketWebsite",
			rz.Err(err),
			rz.String("s3_bucket", name),
		)
		return err
	}

	publicReadPolicy, err := json.Marshal(map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect":    "Allow",
				"Principal": "*",
				"Action":    "s3:GetObject",
				"Resource":  "arn:aws:s3:::" + name + "/*",
			},
		},
	})
	if err != nil {
		return err
	}

	pbpParams := &s3.PutBucketPolicyInput{
		Bucket: aws.String(name),
		Policy: aws.String(string(publicReadPolicy)),
	}
	if _, err := svc.PutBucketPolicy(pbpParams); err != nil {
		log.Error(
			"Error calling S3.PutBucketPolicy",
			rz.Err(err),
			rz.String("s3_bucket", name),
		)
		return err
	}

	return nil
}

func (p *AWS) ListRoles() (
	[]string,
	error,
) {
	svc := iam.New(p.sess, p.config())

	var roles []string
	err := svc.ListRolesPages(&iam.ListRolesInput{},
		func(page *iam.ListRolesOutput, lastPage bool) bool {
			for _, role := range page.Roles {
				roles = append(roles, aws.StringValue(role.RoleName))
			}
			return true
		})
	if err != nil {
		log.Error(
			"Error calling IAM.ListRoles",
			rz.Err(err),
		)
		return nil, err
	}

	return roles, nil
}

// EnsureRole returns the ARN of the named role, creating it with the given
// inline policy when it does not exist yet.
func (p *AWS) EnsureRole(
	name string,
	policyDocument string,
) (
	string,
	error,
) {
	svc := iam.New(p.sess, p.config())

	grOutput, err := svc.GetRole(&iam.GetRoleInput{
		RoleName: aws.String(name),
	})
	if err == nil {
		arn := aws.StringValue(grOutput.Role.Arn)
		log.Debug(
			"IAM role already exists",
			rz.String("iam_role_name", name),
			rz.String("iam_role_arn", arn),
		)
		// Refresh the inline policy so an edited bucket or topic
		// selection takes effect on re-runs.
		if err := p.putRolePolicy(svc, name, policyDocument); err != nil {
			return "", err
		}
		return arn, nil
	}

	if aerr, ok := err.(awserr.Error); !ok || aerr.Code() != iam.ErrCodeNoSuchEntityException {
		log.Error(
			"Error calling IAM.GetRole",
			rz.Err(err),
			rz.String("iam_role_name", name),
		)
		return "", err
	}

	crParams := &iam.CreateRoleInput{
		RoleName:                 aws.String(name),
		AssumeRolePolicyDocument: aws.String(lambdaAssumeRolePolicy),
		Description:              aws.String("Role for the lambda-letsencrypt function"),
	}
	log.Debug(
		"Calling IAM.CreateRole",
		rz.String("iam_role_name", name),
	)
	crOutput, err := svc.CreateRole(crParams)
	if err != nil {
		log.Error(
			"Error calling IAM.CreateRole",
			rz.Err(err),
			rz.String("iam_role_name", name),
		)
		return "", err
	}

	if err := p.putRolePolicy(svc, name, policyDocument); err != nil {
		return "", err
	}

	return aws.StringValue(crOutput.Role.Arn), nil
}

func (p *AWS) putRolePolicy(
	svc *iam.IAM,
	name string,
	policyDocument string,
) error {
	prpParams := &iam.PutRolePolicyInput{
		RoleName:       aws.String(name),
		PolicyName:     aws.String(rolePolicyName),
		PolicyDocument: aws.String(policyDocument),
	}
	if _, err := svc.PutRolePolicy(prpParams); err != nil {
		log.Error(
			"Error calling IAM.PutRolePolicy",
			rz.Err(err),
			rz.String("iam_role_name", name),
		)
		return err
	}
	return nil
}

func (p *AWS) RoleARN(
	name string,
) (
	string,
	error,
) {
	svc := iam.New(p.sess, p.config())

	grOutput, err := svc.GetRole(&iam.GetRoleInput{
		RoleName: aws.String(name),
	})
	if err != nil {
		log.Error(
			"Error calling IAM.GetRole",
			rz.Err(err),
			rz.String("iam_role_name", name),
		)
		return "", err
	}

	return aws.StringValue(grOutput.Role.Arn), nil
}

// WaitForRoleReady polls for the role with exponential backoff until it is
// readable, then waits a short settle delay. IAM is eventually consistent:
// a freshly created role is not immediately assumable by Lambda, and
// creating the function too early fails. The total wait is bounded.
func (p *AWS) WaitForRoleReady(
	name string,
) error {
	svc := iam.New(p.sess, p.config())

	delay := roleWaitInitialDelay
	deadline := time.Now().Add(roleWaitMaxTotal)

	for {
		_, err := svc.GetRole(&iam.GetRoleInput{
			RoleName: aws.String(name),
		})
		if err == nil {
			break
		}

		if time.Now().After(deadline) {
			log.Error(
				"IAM role not readable within the wait bound",
				rz.Err(err),
				rz.String("iam_role_name", name),
				rz.Any("max_total_wait", roleWaitMaxTotal.String()),
			)
			return fmt.Errorf("role %s not ready: %w", name, err)
		}

		log.Debug(
			"IAM role not yet readable; backing off",
			rz.String("iam_role_name", name),
			rz.Any("delay", delay.String()),
		)
		time.Sleep(delay)
		delay *= 2
	}

	// GetRole succeeding does not guarantee the role is assumable by
	// Lambda yet; allow a little extra propagation time.
	time.Sleep(roleSettleDelay)

	return nil
}

// EnsureTopic creates (or finds) the notification topic and subscribes the
// operator's email address to it.
func (p *AWS) EnsureTopic(
	email string,
) (
	string,
	error,
) {
	svc := sns.New(p.sess, p.config())

	// CreateTopic is idempotent: it returns the existing topic's ARN
	// when the name is already taken.
	ctOutput, err := svc.CreateTopic(&sns.CreateTopicInput{
		Name: aws.String(notificationTopicName),
	})
	if err != nil {
		log.Error(
			"Error calling SNS.CreateTopic",
			rz.Err(err),
			rz.String("sns_topic_name", notificationTopicName),
		)
		return "", err
	}
	topicARN := aws.StringValue(ctOutput.TopicArn)

	sParams := &sns.SubscribeInput{
		TopicArn: aws.String(topicARN),
		Protocol: aws.String("email"),
		Endpoint: aws.String(email),
	}
	if _, err := svc.Subscribe(sParams); err != nil {
		log.Error(
			"Error calling SNS.Subscribe",
			rz.Err(err),
			rz.String("sns_topic_arn", topicARN),
		)
		return "", err
	}

	log.Info(
		"Subscribed operator to notification topic",
		rz.String("sns_topic_arn", topicARN),
	)

	return topicARN, nil
}

func (p *AWS) ListDistributions() (
	[]Distribution,
	error,
) {
	svc := cloudfront.New(p.sess, p.config())

	var dists []Distribution
	err := svc.ListDistributionsPages(&cloudfront.ListDistributionsInput{},
		func(page *cloudfront.ListDistributionsOutput, lastPage bool) bool {
			if page.DistributionList == nil {
				return true
			}
			for _, item := range page.DistributionList.Items {
				dist := Distribution{
					ID:      aws.StringValue(item.Id),
					Comment: aws.StringValue(item.Comment),
				}
				if item.Aliases != nil {
					dist.Aliases = aws.StringValueSlice(item.Aliases.Items)
				}
				dists = append(dists, dist)
			}
			return true
		})
	if err != nil {
		log.Error(
			"Error calling CloudFront.ListDistributions",
			rz.Err(err),
		)
		return nil, err
	}

	return dists, nil
}

func (p *AWS) ListLoadBalancers() (
	[]string,
	error,
) {
	svc := elb.New(p.sess, p.config())

	var names []string
	err := svc.DescribeLoadBalancersPages(&elb.DescribeLoadBalancersInput{},
		func(page *elb.DescribeLoadBalancersOutput, lastPage bool) bool {
			for _, lb := range page.LoadBalancerDescriptions {
				names = append(names, aws.StringValue(lb.LoadBalancerName))
			}
			return true
		})
	if err != nil {
		log.Error(
			"Error calling ELB.DescribeLoadBalancers",
			rz.Err(err),
		)
		return nil, err
	}

	return names, nil
}

func (p *AWS) ListZones() (
	[]Zone,
	error,
) {
	svc := route53.New(p.sess, p.config())

	var zones []Zone
	err := svc.ListHostedZonesPages(&route53.ListHostedZonesInput{},
		func(page *route53.ListHostedZonesOutput, lastPage bool) bool {
			for _, hz := range page.HostedZones {
				zones = append(zones, Zone{
					ID:   strings.TrimPrefix(aws.StringValue(hz.Id), "/hostedzone/"),
					Name: strings.TrimSuffix(aws.StringValue(hz.Name), "."),
				})
			}
			return true
		})
	if err != nil {
		log.Error(
			"Error calling Route53.ListHostedZones",
			rz.Err(err),
		)
		return nil, err
	}

	return zones, nil
}

// ZoneIDForDomain resolves the hosted zone managing the given domain name.
// It returns an empty ID when no zone matches.
func (p *AWS) ZoneIDForDomain(
	name string,
) (
	string,
	error,
) {
	zones, err := p.ListZones()
	if err != nil {
		return "", err
	}

	return MatchZone(zones, name), nil
}

// MatchZone picks the most specific zone whose name equals the domain or is
// a parent of it.
func MatchZone(
	zones []Zone,
	domain string,
) string {
	domain = strings.TrimSuffix(domain, ".")

	var bestID string
	var bestLen int
	for _, zone := range zones {
		if zone.Name != domain && !strings.HasSuffix(domain, "."+zone.Name) {
			continue
		}
		if len(zone.Name) > bestLen {
			bestID = zone.ID
			bestLen = len(zone.Name)
		}
	}

	return bestID
}

func (p *AWS) ListFunctions() (
	[]string,
	error,
) {
	svc := lambda.New(p.sess, p.config())

	var names []string
	err := svc.ListFunctionsPages(&lambda.ListFunctionsInput{},
		func(page *lambda.ListFunctionsOutput, lastPage bool) bool {
			for _, fn := range page.Functions {
				names = append(names, aws.StringValue(fn.FunctionName))
			}
			return true
		})
	if err != nil {
		log.Error(
			"Error calling Lambda.ListFunctions",
			rz.Err(err),
		)
		return nil, err
	}

	return names, nil
}

func (p *AWS) CreateFunction(
	name string,
	roleARN string,
	zipPath string,
) (
	*Function,
	error,
) {
	contents, err := os.ReadFile(zipPath)
	if err != nil {
		log.Error(
			"Error reading deployment archive",
			rz.Err(err),
			rz.String("archive_path", zipPath),
		)
		return nil, err
	}

	svc := lambda.New(p.sess, p.config())

	cfParams := &lambda.CreateFunctionInput{
		FunctionName: aws.String(name),
		Runtime:      aws.String(lambdaRuntime),
		Role:         aws.String(roleARN),
		Handler:      aws.String(lambdaHandler),
		Code: &lambda.FunctionCode{
			ZipFile: contents,
		},
		Description: aws.String(lambdaDescription),
		Timeout:     aws.Int64(lambdaTimeout),
		MemorySize:  aws.Int64(lambdaMemoryMB),
		Publish:     aws.Bool(true),
	}

	log.Debug(
		"Calling Lambda.CreateFunction",
		rz.String("function_name", name),
		rz.String("iam_role_arn", roleARN),
		rz.Int("archive_size_bytes", len(contents)),
	)
	cfOutput, err := svc.CreateFunction(cfParams)
	if err != nil {
		log.Error(
			"Error calling Lambda.CreateFunction",
			rz.Err(err),
			rz.String("function_name", name),
		)
		return nil, err
	}

	return &Function{
		Name: aws.StringValue(cfOutput.FunctionName),
		ARN:  aws.StringValue(cfOutput.FunctionArn),
	}, nil
}

func (p *AWS) UpdateFunctionCode(
	name string,
	zipPath string,
) error {
	contents, err := os.ReadFile(zipPath)
	if err != nil {
		log.Error(
			"Error reading deployment archive",
			rz.Err(err),
			rz.String("archive_path", zipPath),
		)
		return err
	}

	svc := lambda.New(p.sess, p.config())

	ufcParams := &lambda.UpdateFunctionCodeInput{
		FunctionName: aws.String(name),
		ZipFile:      contents,
		Publish:      aws.Bool(true),
	}

	log.Debug(
		"Calling Lambda.UpdateFunctionCode",
		rz.String("function_name", name),
		rz.Int("archive_size_bytes", len(contents)),
	)
	if _, err := svc.UpdateFunctionCode(ufcParams); err != nil {
		log.Error(
			"Error calling Lambda.UpdateFunctionCode",
			rz.Err(err),
			rz.String("function_name", name),
		)
		return err
	}

	return nil
}

// CreateDailyRule registers a CloudWatch Events rule that invokes the
// function once a day.
func (p *AWS) CreateDailyRule(
	fn *Function,
	roleARN string,
) error {
	svc := cloudwatchevents.New(p.sess, p.config())

	ruleName := "daily-event-for-" + fn.Name

	prParams := &cloudwatchevents.PutRuleInput{
		Name:               aws.String(ruleName),
		ScheduleExpression: aws.String("rate(1 day)"),
		State:              aws.String(cloudwatchevents.RuleStateEnabled),
		Description:        aws.String("Executed every day"),
		RoleArn:            aws.String(roleARN),
	}
	log.Debug(
		"Calling CloudWatchEvents.PutRule",
		rz.String("rule_name", ruleName),
	)
	if _, err := svc.PutRule(prParams); err != nil {
		log.Error(
			"Error calling CloudWatchEvents.PutRule",
			rz.Err(err),
			rz.String("rule_name", ruleName),
		)
		return err
	}

	ptParams := &cloudwatchevents.PutTargetsInput{
		Rule: aws.String(ruleName),
		Targets: []*cloudwatchevents.Target{
			{
				Id:  aws.String(fn.Name),
				Arn: aws.String(fn.ARN),
			},
		},
	}
	if _, err := svc.PutTargets(ptParams); err != nil {
		log.Error(
			"Error calling CloudWatchEvents.PutTargets",
			rz.Err(err),
			rz.String("rule_name", ruleName),
		)
		return err
	}

	return nil
}
