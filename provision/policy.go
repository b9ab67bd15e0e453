package provision

import (
	"encoding/json"
)

type policyStatement struct {
	Effect   string   `json:"Effect"`
	Action   []string `json:"Action"`
	Resource []string `json:"Resource"`
}

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

// PolicyDocument builds the IAM policy granting the lambda function access
// to the services it manages: its S3 buckets, CloudFront reconfiguration,
// Route53 record management, server certificate upload, logging, and
// optionally publishing to the notification topic. Statements are emitted
// in a fixed order so the document is reproducible.
func PolicyDocument(
	s3Buckets []string,
	snsTopicARN string,
) (
	string,
	error,
) {
	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{
			{
				Effect: "Allow",
				Action: []string{
					"logs:CreateLogGroup",
					"logs:CreateLogStream",
					"logs:PutLogEvents",
				},
				Resource: []string{"arn:aws:logs:*:*:*"},
			},
			{
				Effect: "Allow",
				Action: []string{
					"cloudfront:GetDistribution",
					"cloudfront:GetDistributionConfig",
					"cloudfront:ListDistributions",
					"cloudfront:UpdateDistribution",
				},
				Resource: []string{"*"},
			},
			{
				Effect: "Allow",
				Action: []string{
					"route53:ListHostedZones",
					"route53:ChangeResourceRecordSets",
					"route53:GetChange",
				},
				Resource: []string{"*"},
			},
			{
				Effect: "Allow",
				Action: []string{
					"iam:ListServerCertificates",
					"iam:UploadServerCertificate",
					"iam:DeleteServerCertificate",
					"iam:UpdateServerCertificate",
				},
				Resource: []string{"*"},
			},
			{
				Effect: "Allow",
				Action: []string{
					"elasticloadbalancing:DescribeLoadBalancers",
					"elasticloadbalancing:SetLoadBalancerListenerSSLCertificate",
					"elasticloadbalancing:CreateLoadBalancerListeners",
				},
				Resource: []string{"*"},
			},
		},
	}

	var bucketResources []string
	for _, b := range s3Buckets {
		if b == "" {
			continue
		}
		bucketResources = append(bucketResources,
			"arn:aws:s3:::"+b,
			"arn:aws:s3:::"+b+"/*",
		)
	}
	if len(bucketResources) > 0 {
		doc.Statement = append(doc.Statement, policyStatement{
			Effect: "Allow",
			Action: []string{
				"s3:ListBucket",
				"s3:GetObject",
				"s3:PutObject",
				"s3:DeleteObject",
			},
			Resource: bucketResources,
		})
	}

	if snsTopicARN != "" {
		doc.Statement = append(doc.Statement, policyStatement{
			Effect:   "Allow",
			Action:   []string{"sns:Publish"},
			Resource: []string{snsTopicARN},
		})
	}

	docJSON, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return "", err
	}

	return string(docJSON), nil
}
