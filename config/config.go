package config

// Validation challenge types understood by the lambda runtime.
const (
	MethodHTTP01 = "http-01"
	MethodDNS01  = "dns-01"
)

// Domain is a single hostname to be validated and put on a certificate.
// The JSON field names match the keys the packaged lambda configuration
// expects; field order is fixed so renders are reproducible.
type Domain struct {
	Name              string   `json:"DOMAIN" yaml:"domain"`
	ValidationMethods []string `json:"VALIDATION_METHODS" yaml:"validation_methods"`
	Route53ZoneID     string   `json:"ROUTE53_ZONE_ID,omitempty" yaml:"route53_zone_id,omitempty"`
	CloudFrontID      string   `json:"CLOUDFRONT_ID,omitempty" yaml:"cloudfront_id,omitempty"`
}

// HasMethod reports whether the given challenge type is selected.
func (d Domain) HasMethod(
	method string,
) bool {
	for _, m := range d.ValidationMethods {
		if m == method {
			return true
		}
	}
	return false
}

// CFSite ties a CloudFront distribution to the domains on its certificate.
type CFSite struct {
	CloudFrontID string   `json:"CLOUDFRONT_ID" yaml:"cloudfront_id"`
	Domains      []string `json:"DOMAINS" yaml:"domains"`
}

// ELBSite ties a classic load balancer listener port to the domains on its
// certificate.
type ELBSite struct {
	Name    string   `json:"ELB_NAME" yaml:"elb_name"`
	Port    int64    `json:"ELB_PORT" yaml:"elb_port"`
	Domains []string `json:"DOMAINS" yaml:"domains"`
}

// Config accumulates every decision the operator makes during a wizard
// session. It holds state only; the wizard engine is its single writer.
type Config struct {
	Namespace string `yaml:"namespace"`
	AWSRegion string `yaml:"aws_region"`

	UseSNS         bool   `yaml:"use_sns"`
	SNSNotifyEmail string `yaml:"sns_notify_email"`

	CreateIAMRole bool   `yaml:"create_iam_role"`
	IAMRoleName   string `yaml:"iam_role_name"`

	CreateS3ConfigBucket bool   `yaml:"create_s3_config_bucket"`
	S3ConfigBucket       string `yaml:"s3_config_bucket"`

	UseHTTPChallenges       bool   `yaml:"use_http_challenges"`
	CreateS3ChallengeBucket bool   `yaml:"create_s3_challenge_bucket"`
	S3ChallengeBucket       string `yaml:"s3_challenge_bucket"`

	CFDomains  []Domain `yaml:"cf_domains"`
	ELBDomains []Domain `yaml:"elb_domains"`

	CFSites  []CFSite  `yaml:"cf_sites"`
	ELBSites []ELBSite `yaml:"elb_sites"`

	CreateTriggerRule bool `yaml:"create_trigger_rule"`
}

const resourcePrefix = "lambda-letsencrypt"

// DefaultConfigBucketName derives the config bucket name from the
// namespace.
func (c *Config) DefaultConfigBucketName() string {
	return resourcePrefix + "-config-" + c.Namespace
}

// DefaultChallengeBucketName derives the challenge bucket name from the
// namespace.
func (c *Config) DefaultChallengeBucketName() string {
	return resourcePrefix + "-challenges-" + c.Namespace
}

// DefaultRoleName derives the IAM role name from the namespace.
func (c *Config) DefaultRoleName() string {
	return resourcePrefix + "-" + c.Namespace
}

// FunctionName derives the lambda function name from the namespace.
func (c *Config) FunctionName() string {
	return resourcePrefix + "-" + c.Namespace
}

// Domains returns the combined CloudFront and ELB domain records in their
// insertion order.
func (c *Config) Domains() []Domain {
	domains := make([]Domain, 0, len(c.CFDomains)+len(c.ELBDomains))
	domains = append(domains, c.CFDomains...)
	domains = append(domains, c.ELBDomains...)
	return domains
}

// DomainIsDuplicate reports whether a domain name is already present in the
// combined CloudFront and ELB domain collections.
func (c *Config) DomainIsDuplicate(
	name string,
) bool {
	for _, d := range c.Domains() {
		if d.Name == name {
			return true
		}
	}
	return false
}

// IsComplete reports whether every field required for rendering is
// populated. Fields gated off by a boolean are not required: the challenge
// bucket only matters when HTTP challenges are enabled, the notification
// email only when notifications are enabled.
func (c *Config) IsComplete() bool {
	if c.Namespace == "" {
		return false
	}
	if c.AWSRegion == "" {
		return false
	}
	if c.UseSNS && c.SNSNotifyEmail == "" {
		return false
	}
	if c.IAMRoleName == "" {
		return false
	}
	if c.S3ConfigBucket == "" {
		return false
	}
	if c.UseHTTPChallenges && c.S3ChallengeBucket == "" {
		return false
	}
	return true
}
