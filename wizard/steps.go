package wizard

import (
	"fmt"
	"strings"

	"github.com/sveniu/aws-lambda-letsencrypt-setup/config"
	"github.com/sveniu/aws-lambda-letsencrypt-setup/provision"
	"github.com/sveniu/aws-lambda-letsencrypt-setup/terminal"
)

func regionOptions(
	regions []string,
) []terminal.Option {
	options := make([]terminal.Option, len(regions))
	for i, name := range regions {
		options[i] = terminal.Option{Selector: i, Prompt: name, Value: name}
	}
	return options
}

func stringOptions(
	values []string,
) []terminal.Option {
	options := make([]terminal.Option, len(values))
	for i, v := range values {
		options[i] = terminal.Option{Selector: i, Prompt: v, Value: v}
	}
	return options
}

// chooseBucket lists the account's buckets and asks the operator to pick
// one.
func (e *Engine) chooseBucket() (
	string,
	error,
) {
	buckets, err := e.prov.ListBuckets()
	if err != nil {
		return "", err
	}
	value, _ := e.ui.GetSelection(
		"Select the S3 Bucket to use:",
		stringOptions(buckets),
		"Which S3 Bucket?",
		false,
	)
	bucket, _ := value.(string)
	return bucket, nil
}

func (e *Engine) stepNamespace() error {
	e.ui.PrintHeader("Namespace")
	e.ui.WriteString("It is necessary to provide unique names when creating configuration and " +
		"challenge S3 buckets; the provided value will be appended to default names. " +
		"In other cases uniqueness is not necessary although helpful if you need to " +
		"distinguish among resources.")

	namespace := e.ui.GetInput("Enter value to append to resource names (eg: foobar): ", false)

	e.cfg.Namespace = namespace
	return nil
}

func (e *Engine) stepRegion() error {
	e.ui.PrintHeader("AWS Region")
	e.ui.WriteString("Choose the region you want to use for new resources.")

	regions, err := e.prov.ListRegions()
	if err != nil {
		return err
	}

	value, _ := e.ui.GetSelection(
		"Select AWS region to use:",
		regionOptions(regions),
		"Which AWS region?",
		false,
	)
	region, _ := value.(string)

	e.cfg.AWSRegion = region
	e.prov.SetRegion(region)
	return nil
}

func (e *Engine) stepNotifications() error {
	e.ui.PrintHeader("Notifications")
	e.ui.WriteString("The lambda function can send notifications when a certificate is issued, " +
		"errors occur, or other things that may need your attention. " +
		"Notifications are optional.")

	email := e.ui.GetInput("Enter the email address for notifications (blank to disable): ", true)

	e.cfg.UseSNS = email != ""
	e.cfg.SNSNotifyEmail = email
	return nil
}

func (e *Engine) stepIAMRole() error {
	e.ui.PrintHeader("IAM Configuration")
	e.ui.WriteString("An IAM role must be created for this lambda function giving it access to " +
		"CloudFront, Route53, S3, SNS (notifications), IAM (certificates), and " +
		"CloudWatch (logs/alarms).")
	e.ui.Println()
	e.ui.WriteString("If you do not let the wizard create this role you will be asked to select " +
		"an existing role to use.")

	create := e.ui.GetYN("Do you want to automatically create this role", true)

	var roleName string
	if create {
		roleName = e.cfg.DefaultRoleName()
	} else {
		roles, err := e.prov.ListRoles()
		if err != nil {
			return err
		}
		value, _ := e.ui.GetSelection(
			"Select the IAM Role:",
			stringOptions(roles),
			"Which IAM Role?",
			false,
		)
		roleName, _ = value.(string)
	}

	e.cfg.CreateIAMRole = create
	e.cfg.IAMRoleName = roleName
	return nil
}

func (e *Engine) stepConfigBucket() error {
	e.ui.PrintHeader("S3 Configuration Bucket")
	e.ui.WriteString("An S3 Bucket is required to store configuration. If you already have a " +
		"bucket you want to use for this, choose no and select it from the list. " +
		"Otherwise let the wizard create one for you.")

	create := e.ui.GetYN("Create a bucket for configuration", true)

	var bucket string
	if create {
		bucket = e.cfg.DefaultConfigBucketName()
	} else {
		var err error
		bucket, err = e.chooseBucket()
		if err != nil {
			return err
		}
	}

	e.cfg.CreateS3ConfigBucket = create
	e.cfg.S3ConfigBucket = bucket
	return nil
}

func (e *Engine) stepChallenges() error {
	e.ui.PrintHeader("Lets-Encrypt Challenge Validation Settings")
	e.ui.WriteString("This tool will handle validation of your domains automatically. There are " +
		"two possible validation methods: HTTP and DNS.")
	e.ui.Println()
	e.ui.WriteString("HTTP validation is only available for CloudFront sites. It requires an S3 " +
		"bucket to store the challenge responses in. This bucket needs to be publicly " +
		"accessible. Your CloudFront Distribution(s) will be reconfigured to use this " +
		"bucket as an origin for challenge responses.")
	e.ui.WriteString("If you do not configure a bucket for this you will only be able to use DNS " +
		"validation.")
	e.ui.Println()
	e.ui.WriteString("DNS validation requires your domain to be managed with Route53. This " +
		"validation method is always available and requires no additional configuration.")
	e.ui.Warn("Note: DNS validation is currently only supported by the staging server.")
	e.ui.Println()
	e.ui.WriteString("Each domain you want to manage can be configured to validate using either " +
		"of these methods.")
	e.ui.Println()

	useHTTP := e.ui.GetYN("Do you want to configure HTTP validation", true)

	createBucket := false
	bucket := ""
	if useHTTP {
		createBucket = e.ui.GetYN(
			"Do you want to create a bucket for these challenges (Choose No to select an existing bucket)",
			true,
		)
		if createBucket {
			bucket = e.cfg.DefaultChallengeBucketName()
		} else {
			var err error
			bucket, err = e.chooseBucket()
			if err != nil {
				return err
			}
		}
	}

	e.cfg.UseHTTPChallenges = useHTTP
	e.cfg.CreateS3ChallengeBucket = createBucket
	e.cfg.S3ChallengeBucket = bucket
	return nil
}

func (e *Engine) stepCloudFront() error {
	e.ui.PrintHeader("CloudFront Configuration")

	dists, err := e.prov.ListDistributions()
	if err != nil {
		return err
	}

	distOptions := make([]terminal.Option, len(dists))
	for i, d := range dists {
		distOptions[i] = terminal.Option{
			Selector: i,
			Prompt:   fmt.Sprintf("%s - %s (%s)", d.ID, d.Comment, strings.Join(d.Aliases, ", ")),
			Value:    d,
		}
	}

	e.ui.WriteString("Now we'll detect your existing CloudFront Distributions and allow you to " +
		"configure them to use SSL. Domain names will be automatically detected from " +
		"the 'Aliases/CNAMEs' configuration section of each Distribution.")
	e.ui.Println()
	e.ui.WriteString("You will configure each Distribution fully before being presented with the " +
		"list of Distributions again. You can configure as many Distributions as you " +
		"like.")

	// Decisions are staged locally and only committed once every remote
	// lookup has succeeded, so a failure leaves the model untouched.
	var domains []config.Domain
	var sites []config.CFSite
	seen := make(map[string]bool)
	for _, d := range e.cfg.ELBDomains {
		seen[d.Name] = true
	}

	for {
		e.ui.Println()
		value, ok := e.ui.GetSelection(
			"Select a CloudFront Distribution to configure with Lets-Encrypt (leave blank to finish)",
			distOptions,
			"Which CloudFront Distribution?",
			true,
		)
		if !ok {
			break
		}
		dist := value.(provision.Distribution)

		e.ui.WriteString("The following domain names exist for the selected CloudFront Distribution:")
		e.ui.WriteString("    " + strings.Join(dist.Aliases, ", "))
		e.ui.WriteString("Each domain in this list will be validated with Lets-Encrypt and added " +
			"to the certificate assigned to this Distribution.")
		e.ui.Println()

		for _, dnsName := range dist.Aliases {
			if seen[dnsName] {
				e.ui.Warn(fmt.Sprintf("Domain '%s' is already configured; skipping.", dnsName))
				continue
			}

			domain := config.Domain{
				Name:              dnsName,
				ValidationMethods: []string{},
			}

			e.ui.Printf("Choose validation methods for the domain '%s'\n", dnsName)

			zoneID, err := e.prov.ZoneIDForDomain(dnsName)
			if err != nil {
				return err
			}
			if zoneID != "" {
				e.ui.Good("Route53 zone detected!")
				if e.ui.GetYN("Validate using DNS", false) {
					domain.Route53ZoneID = zoneID
					domain.ValidationMethods = append(domain.ValidationMethods, config.MethodDNS01)
				}
			} else {
				e.ui.Warn("No Route53 zone detected, DNS validation not possible.")
			}

			if e.ui.GetYN("Validate using HTTP", true) {
				domain.CloudFrontID = dist.ID
				domain.ValidationMethods = append(domain.ValidationMethods, config.MethodHTTP01)
			}

			if len(domain.ValidationMethods) == 0 {
				e.ui.Warn(fmt.Sprintf("No validation method selected for '%s'; it will be "+
					"listed but cannot be validated until one is configured.", dnsName))
			}

			seen[dnsName] = true
			domains = append(domains, domain)
		}

		sites = append(sites, config.CFSite{
			CloudFrontID: dist.ID,
			Domains:      dist.Aliases,
		})
	}

	e.cfg.CFDomains = domains
	e.cfg.CFSites = sites
	return nil
}

func (e *Engine) stepLoadBalancers() error {
	e.ui.PrintHeader("ELB Configuration")
	e.ui.WriteString("Now we'll detect your existing Elastic Load Balancers and allow you to " +
		"configure them to use SSL. You must select the domain names you want on the " +
		"certificate for each ELB.")
	e.ui.WriteString("Note that only DNS validation (via Route53) is supported for ELBs.")
	e.ui.Println()

	elbs, err := e.prov.ListLoadBalancers()
	if err != nil {
		return err
	}

	zones, err := e.prov.ListZones()
	if err != nil {
		return err
	}
	zoneOptions := make([]terminal.Option, len(zones))
	for i, zone := range zones {
		zoneOptions[i] = terminal.Option{
			Selector: i,
			Prompt:   fmt.Sprintf("%s - %s", zone.Name, zone.ID),
			Value:    zone,
		}
	}

	var domains []config.Domain
	var sites []config.ELBSite
	seen := make(map[string]bool)
	for _, d := range e.cfg.CFDomains {
		seen[d.Name] = true
	}

	for {
		value, ok := e.ui.GetSelection(
			"Choose an ELB to configure SSL for (leave blank for none)",
			stringOptions(elbs),
			"Which ELB?",
			true,
		)
		if !ok {
			break
		}
		lbName := value.(string)

		port := e.ui.GetInt("What port number will this certificate be for (HTTPS is 443) [443]? ", 443)

		var siteDomains []string
		for {
			if len(siteDomains) > 0 {
				e.ui.Printf("Already selected: %s\n", strings.Join(siteDomains, ","))
			}
			value, ok := e.ui.GetSelection(
				"Choose a Route53 Zone that points to this load balancer:",
				zoneOptions,
				"Which zone?",
				true,
			)
			if !ok {
				break
			}
			zone := value.(provision.Zone)

			// Each domain can only be added once.
			if seen[zone.Name] {
				e.ui.Warn(fmt.Sprintf("Domain '%s' is already configured; skipping.", zone.Name))
				continue
			}
			seen[zone.Name] = true

			siteDomains = append(siteDomains, zone.Name)
			domains = append(domains, config.Domain{
				Name:              zone.Name,
				ValidationMethods: []string{config.MethodDNS01},
				Route53ZoneID:     zone.ID,
			})
		}

		sites = append(sites, config.ELBSite{
			Name:    lbName,
			Port:    port,
			Domains: siteDomains,
		})
	}

	e.cfg.ELBDomains = domains
	e.cfg.ELBSites = sites
	return nil
}

func (e *Engine) stepTrigger() error {
	e.ui.PrintHeader("Lets-Encrypt Certificate Check Trigger")
	e.ui.WriteString("To set up the certificate and later update it, it is necessary to invoke " +
		"the generated AWS Lambda function regularly. The Lambda function will make " +
		"sure the certificate is issued (might take 2-3 invocations), will check its " +
		"expiry, and will update it before it expires.")
	e.ui.Println()
	e.ui.WriteString("The trigger is created as an AWS CloudWatch Event rule with a target " +
		"pointing to the Lambda function.")
	e.ui.Println()
	e.ui.WriteString("If you skip setting up this trigger, you will need to either invoke the " +
		"function yourself or set up a trigger that does it.")
	e.ui.Println()

	e.cfg.CreateTriggerRule = e.ui.GetYN("Set up AWS Lambda trigger?", true)
	return nil
}
