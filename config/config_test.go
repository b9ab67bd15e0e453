package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeConfig() *Config {
	return &Config{
		Namespace:            "acme",
		AWSRegion:            "us-east-1",
		CreateIAMRole:        true,
		IAMRoleName:          "lambda-letsencrypt-acme",
		CreateS3ConfigBucket: true,
		S3ConfigBucket:       "lambda-letsencrypt-config-acme",
		UseHTTPChallenges:    true,
		S3ChallengeBucket:    "lambda-letsencrypt-challenges-acme",
		CFDomains: []Domain{
			{
				Name:              "www.acme.example",
				ValidationMethods: []string{MethodHTTP01},
				CloudFrontID:      "E2EXAMPLE",
			},
		},
		CFSites: []CFSite{
			{CloudFrontID: "E2EXAMPLE", Domains: []string{"www.acme.example"}},
		},
		CreateTriggerRule: true,
	}
}

func TestDefaultNames(
	t *testing.T,
) {
	cfg := &Config{Namespace: "foobar"}

	assert.Equal(t, "lambda-letsencrypt-config-foobar", cfg.DefaultConfigBucketName())
	assert.Equal(t, "lambda-letsencrypt-challenges-foobar", cfg.DefaultChallengeBucketName())
	assert.Equal(t, "lambda-letsencrypt-foobar", cfg.DefaultRoleName())
	assert.Equal(t, "lambda-letsencrypt-foobar", cfg.FunctionName())
}

func TestHasMethod(
	t *testing.T,
) {
	d := Domain{
		Name:              "www.acme.example",
		ValidationMethods: []string{MethodHTTP01},
	}

	assert.True(t, d.HasMethod(MethodHTTP01))
	assert.False(t, d.HasMethod(MethodDNS01))
	assert.False(t, Domain{}.HasMethod(MethodHTTP01))
}

func TestDomainIsDuplicate(
	t *testing.T,
) {
	cfg := completeConfig()
	cfg.ELBDomains = []Domain{
		{
			Name:              "lb.acme.example",
			ValidationMethods: []string{MethodDNS01},
			Route53ZoneID:     "Z123",
		},
	}

	// Names from either collection count.
	assert.True(t, cfg.DomainIsDuplicate("www.acme.example"))
	assert.True(t, cfg.DomainIsDuplicate("lb.acme.example"))
	assert.False(t, cfg.DomainIsDuplicate("other.acme.example"))
}

type isCompleteTestCase struct {
	name     string
	mutate   func(*Config)
	expected bool
}

var isCompleteTestCases = []isCompleteTestCase{
	{
		name:     "complete",
		mutate:   func(c *Config) {},
		expected: true,
	},
	{
		name:     "missing namespace",
		mutate:   func(c *Config) { c.Namespace = "" },
		expected: false,
	},
	{
		name:     "missing region",
		mutate:   func(c *Config) { c.AWSRegion = "" },
		expected: false,
	},
	{
		name:     "missing role name",
		mutate:   func(c *Config) { c.IAMRoleName = "" },
		expected: false,
	},
	{
		name:     "missing config bucket",
		mutate:   func(c *Config) { c.S3ConfigBucket = "" },
		expected: false,
	},
	{
		name:     "challenge bucket required when http enabled",
		mutate:   func(c *Config) { c.S3ChallengeBucket = "" },
		expected: false,
	},
	{
		name: "challenge bucket not required when http disabled",
		mutate: func(c *Config) {
			c.UseHTTPChallenges = false
			c.S3ChallengeBucket = ""
		},
		expected: true,
	},
	{
		name:     "email required when notifications enabled",
		mutate:   func(c *Config) { c.UseSNS = true },
		expected: false,
	},
	{
		name: "email present when notifications enabled",
		mutate: func(c *Config) {
			c.UseSNS = true
			c.SNSNotifyEmail = "ops@acme.example"
		},
		expected: true,
	},
}

func TestIsComplete(
	t *testing.T,
) {
	for _, tc := range isCompleteTestCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := completeConfig()
			tc.mutate(cfg)
			assert.Equal(t, tc.expected, cfg.IsComplete())
		})
	}
}

func TestTemplateVarsDeterministic(
	t *testing.T,
) {
	cfg := completeConfig()
	cfg.ELBDomains = []Domain{
		{
			Name:              "lb.acme.example",
			ValidationMethods: []string{MethodDNS01},
			Route53ZoneID:     "Z123",
		},
	}
	cfg.ELBSites = []ELBSite{
		{Name: "acme-lb", Port: 443, Domains: []string{"lb.acme.example"}},
	}

	first, err := cfg.TemplateVars("arn:aws:sns:us-east-1:123456789012:notify")
	require.NoError(t, err)
	second, err := cfg.TemplateVars("arn:aws:sns:us-east-1:123456789012:notify")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestTemplateVarsContent(
	t *testing.T,
) {
	cfg := completeConfig()
	cfg.UseSNS = true
	cfg.SNSNotifyEmail = "ops@acme.example"

	vars, err := cfg.TemplateVars("arn:aws:sns:us-east-1:123456789012:notify")
	require.NoError(t, err)

	// Every recognized placeholder must be present in every render.
	for _, key := range []string{
		"AWS_REGION", "SNS_ARN", "NOTIFY_EMAIL",
		"S3_CONFIG_BUCKET", "S3_CHALLENGE_BUCKET",
		"DOMAINS", "SITES",
	} {
		assert.Contains(t, vars, key)
	}

	assert.Equal(t, "'us-east-1'", vars["AWS_REGION"])
	assert.Equal(t, "'ops@acme.example'", vars["NOTIFY_EMAIL"])
	assert.Contains(t, vars["DOMAINS"], `"DOMAIN": "www.acme.example"`)
	assert.Contains(t, vars["DOMAINS"], `"CLOUDFRONT_ID": "E2EXAMPLE"`)
	assert.Contains(t, vars["SITES"], `"CLOUDFRONT_ID": "E2EXAMPLE"`)
}

func TestTemplateVarsNoneSentinels(
	t *testing.T,
) {
	cfg := completeConfig()
	cfg.UseHTTPChallenges = false
	cfg.S3ChallengeBucket = ""

	vars, err := cfg.TemplateVars("")
	require.NoError(t, err)

	// Absent optional values carry an explicit sentinel, never omitted.
	assert.Equal(t, "None", vars["SNS_ARN"])
	assert.Equal(t, "None", vars["NOTIFY_EMAIL"])
	assert.Equal(t, "None", vars["S3_CHALLENGE_BUCKET"])
}

func TestPyStrEscaping(
	t *testing.T,
) {
	assert.Equal(t, "None", pyStr(""))
	assert.Equal(t, `'plain'`, pyStr("plain"))
	assert.Equal(t, `'o\'brien'`, pyStr("o'brien"))
	assert.Equal(t, `'a\\b'`, pyStr(`a\b`))
}

func TestTemplateVarsQuotesEmailSafely(
	t *testing.T,
) {
	cfg := completeConfig()
	cfg.UseSNS = true
	cfg.SNSNotifyEmail = "o'brien@acme.example"

	vars, err := cfg.TemplateVars("arn:aws:sns:us-east-1:123456789012:notify")
	require.NoError(t, err)

	assert.Equal(t, `'o\'brien@acme.example'`, vars["NOTIFY_EMAIL"])
}

func TestTemplateVarsEmptyLists(
	t *testing.T,
) {
	cfg := &Config{
		Namespace:      "acme",
		AWSRegion:      "us-east-1",
		IAMRoleName:    "role",
		S3ConfigBucket: "bucket",
	}

	vars, err := cfg.TemplateVars("")
	require.NoError(t, err)

	assert.Equal(t, "[]", vars["DOMAINS"])
	assert.Equal(t, "[]", vars["SITES"])
}
