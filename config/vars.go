package config

import (
	"encoding/json"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// pythonNone is substituted for optional values that were never set. The
// rendered artifact is Python source, so the sentinel must be a valid
// Python literal.
const pythonNone = "None"

// TemplateVars carries the full set of placeholder values recognized by the
// configuration template. Every placeholder must be present in every
// render; nullable ones carry the explicit None sentinel instead of being
// omitted.
type TemplateVars struct {
	AWSRegion         string `mapstructure:"AWS_REGION"`
	SNSARN            string `mapstructure:"SNS_ARN"`
	NotifyEmail       string `mapstructure:"NOTIFY_EMAIL"`
	S3ConfigBucket    string `mapstructure:"S3_CONFIG_BUCKET"`
	S3ChallengeBucket string `mapstructure:"S3_CHALLENGE_BUCKET"`
	Domains           string `mapstructure:"DOMAINS"`
	Sites             string `mapstructure:"SITES"`
}

// pyStr quotes a value as a Python string literal, or yields None when the
// value is absent. Backslashes and single quotes are escaped so the
// rendered artifact stays syntactically valid.
func pyStr(
	s string,
) string {
	if s == "" {
		return pythonNone
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// TemplateVars derives the placeholder map for rendering the configuration
// artifact. The domain and site lists are serialized as indented JSON in
// insertion order (CloudFront entries first, then ELB), so rendering the
// same unmodified Config twice produces byte-identical output. The SNS
// topic ARN is only known at finalize time and is passed in by the caller;
// an empty ARN disables notifications in the artifact.
func (c *Config) TemplateVars(
	snsARN string,
) (
	map[string]string,
	error,
) {
	domainsJSON, err := json.MarshalIndent(c.Domains(), "", "    ")
	if err != nil {
		return nil, err
	}

	sites := make([]interface{}, 0, len(c.CFSites)+len(c.ELBSites))
	for _, s := range c.CFSites {
		sites = append(sites, s)
	}
	for _, s := range c.ELBSites {
		sites = append(sites, s)
	}
	sitesJSON, err := json.MarshalIndent(sites, "", "    ")
	if err != nil {
		return nil, err
	}

	notifyEmail := ""
	if snsARN != "" && c.UseSNS {
		notifyEmail = c.SNSNotifyEmail
	}

	tv := TemplateVars{
		AWSRegion:         pyStr(c.AWSRegion),
		SNSARN:            pyStr(snsARN),
		NotifyEmail:       pyStr(notifyEmail),
		S3ConfigBucket:    pyStr(c.S3ConfigBucket),
		S3ChallengeBucket: pyStr(c.S3ChallengeBucket),
		Domains:           string(domainsJSON),
		Sites:             string(sitesJSON),
	}

	vars := make(map[string]string)
	if err := mapstructure.Decode(tv, &vars); err != nil {
		return nil, err
	}

	return vars, nil
}
