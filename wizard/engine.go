package wizard

import (
	"fmt"
	"os"
	"strings"

	"gitlab.com/z0mbie42/rz-go/v2"
	"gitlab.com/z0mbie42/rz-go/v2/log"
	"gopkg.in/yaml.v2"

	"github.com/sveniu/aws-lambda-letsencrypt-setup/archive"
	"github.com/sveniu/aws-lambda-letsencrypt-setup/config"
	"github.com/sveniu/aws-lambda-letsencrypt-setup/provision"
	"github.com/sveniu/aws-lambda-letsencrypt-setup/render"
	"github.com/sveniu/aws-lambda-letsencrypt-setup/terminal"
)

// State is the engine's lifecycle position.
type State int

const (
	StateCollecting State = iota
	StateReviewing
	StateEditing
	StateFinalizing
	StateDone
)

// The canonical name of the configuration inside the archive, independent
// of its on-disk filename.
const configMemberName = "config.py"

// Paths locates the payload sources, the template, and the session outputs.
type Paths struct {
	TemplateFile  string
	HandlerFile   string
	ChallengeFile string
	RenderedFile  string
	SnapshotFile  string
	ArchiveFile   string
}

func DefaultPaths() Paths {
	return Paths{
		TemplateFile:  "lambda/config.py.dist",
		HandlerFile:   "lambda/lambda_function.py",
		ChallengeFile: "lambda/simple_acme.py",
		RenderedFile:  "config-wizard.py",
		SnapshotFile:  "wizard-settings.yaml",
		ArchiveFile:   "lambda-letsencrypt-dist.zip",
	}
}

// manifest is the fixed, ordered member list of the deployment archive.
func (p Paths) manifest() []archive.Member {
	return []archive.Member{
		{SourcePath: p.HandlerFile, Name: "lambda_function.py"},
		{SourcePath: p.ChallengeFile, Name: "simple_acme.py"},
		{SourcePath: p.RenderedFile, Name: configMemberName},
	}
}

// Engine owns one Config for the duration of a session and drives the step
// registry through the collect/review/edit/finalize lifecycle.
type Engine struct {
	cfg   *config.Config
	ui    *terminal.UI
	prov  provision.Provisioner
	reg   *Registry
	paths Paths
	state State
}

func New(
	cfg *config.Config,
	ui *terminal.UI,
	prov provision.Provisioner,
	paths Paths,
) *Engine {
	e := &Engine{
		cfg:   cfg,
		ui:    ui,
		prov:  prov,
		reg:   NewRegistry(),
		paths: paths,
		state: StateCollecting,
	}

	e.reg.Register(StepNamespace, e.stepNamespace)
	e.reg.Register(StepRegion, e.stepRegion)
	e.reg.Register(StepNotifications, e.stepNotifications)
	e.reg.Register(StepIAMRole, e.stepIAMRole)
	e.reg.Register(StepConfigBucket, e.stepConfigBucket)
	e.reg.Register(StepChallenges, e.stepChallenges)
	e.reg.Register(StepCloudFront, e.stepCloudFront)
	e.reg.Register(StepLoadBalancers, e.stepLoadBalancers)
	e.reg.Register(StepTrigger, e.stepTrigger)

	return e
}

// State reports the engine's current lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// RunStep re-executes a single step. Exposed for the edit loop and tests;
// all fields not owned by the step are left untouched.
func (e *Engine) RunStep(
	id StepID,
) error {
	return e.reg.RunOne(id)
}

// Run executes a full wizard session: the initial pass, the review/edit
// loop, and finalization. A step failure during the initial pass aborts
// the session; during editing it is reported and the review loop resumes.
func (e *Engine) Run() error {
	e.printIntro()

	e.state = StateCollecting
	if err := e.reg.RunInitial(); err != nil {
		e.ui.Failln(fmt.Sprintf("Setup failed: %v", err))
		return err
	}

	e.state = StateReviewing
	for {
		e.printSummary()
		if e.ui.GetYN("Are these settings correct", true) {
			break
		}

		id, ok := e.chooseStepToEdit()
		if !ok {
			continue
		}

		e.state = StateEditing
		if err := e.reg.RunOne(id); err != nil {
			log.Warn(
				"Step failed during editing",
				rz.Err(err),
				rz.String("step", id.String()),
			)
			e.ui.Failln(fmt.Sprintf("Step %s failed: %v", id, err))
		}
		e.state = StateReviewing
	}

	e.state = StateFinalizing
	if err := e.finalize(); err != nil {
		e.ui.Failln(fmt.Sprintf("Setup failed: %v", err))
		return err
	}

	e.state = StateDone
	return nil
}

func (e *Engine) printIntro() {
	e.ui.PrintHeader("Lambda Lets-Encrypt Wizard")
	e.ui.WriteString("This wizard will guide you through the process of setting up your existing " +
		"CloudFront Distributions to use SSL certificates provided by Lets-Encrypt and " +
		"automatically issued/maintained by an AWS Lambda function.")
	e.ui.Println()
	e.ui.WriteString("These certificates are free of charge, and valid for 90 days. This wizard " +
		"will also set up a Lambda function that is responsible for issuing and " +
		"renewing these certificates automatically as they near their expiration date.")
	e.ui.Println()
	e.ui.WriteString("The cost of the AWS services used to make this work are typically less than " +
		"a penny per month. For full pricing details please refer to the docs.")
	e.ui.Println()
}

func (e *Engine) chooseStepToEdit() (
	StepID,
	bool,
) {
	options := make([]terminal.Option, 0, stepCount+1)
	for i, id := range e.reg.Order() {
		options = append(options, terminal.Option{
			Selector: i,
			Prompt:   id.String(),
			Value:    id,
		})
	}
	options = append(options, terminal.Option{
		Selector: len(options),
		Prompt:   "Done",
		Value:    nil,
	})

	value, _ := e.ui.GetSelection(
		"Which section do you want to change",
		options,
		"Which section to modify?",
		false,
	)
	id, ok := value.(StepID)
	return id, ok
}

func createdOrExisting(
	created bool,
) string {
	if created {
		return "(to be created)"
	}
	return "(existing)"
}

func (e *Engine) printSummary() {
	cfg := e.cfg

	e.ui.PrintHeader("**Summary**")
	e.ui.Printf("Namespace:                  %s\n", cfg.Namespace)
	e.ui.Printf("AWS region:                 %s\n", cfg.AWSRegion)
	if cfg.UseSNS {
		e.ui.Printf("Notification Email:         %s\n", cfg.SNSNotifyEmail)
	} else {
		e.ui.Printf("Notification Email:         (notifications disabled)\n")
	}
	e.ui.Printf("S3 Config Bucket:           %s %s\n",
		cfg.S3ConfigBucket, createdOrExisting(cfg.CreateS3ConfigBucket))
	e.ui.Printf("IAM Role Name:              %s %s\n",
		cfg.IAMRoleName, createdOrExisting(cfg.CreateIAMRole))
	e.ui.Printf("Support HTTP Challenges:    %t\n", cfg.UseHTTPChallenges)
	if cfg.UseHTTPChallenges {
		e.ui.Printf("S3 HTTP Challenge Bucket:   %s %s\n",
			cfg.S3ChallengeBucket, createdOrExisting(cfg.CreateS3ChallengeBucket))
	}

	e.ui.Println("Domains To Manage With Lets-Encrypt:")
	for _, d := range cfg.Domains() {
		if len(d.ValidationMethods) == 0 {
			e.ui.Warn(fmt.Sprintf("    %s - [no validation methods selected]", d.Name))
			continue
		}
		e.ui.Printf("    %s - [%s]\n", d.Name, strings.Join(d.ValidationMethods, ","))
	}

	e.ui.Println("CloudFront Distributions To Manage:")
	for _, s := range cfg.CFSites {
		e.ui.Printf("    %s - [%s]\n", s.CloudFrontID, strings.Join(s.Domains, ","))
	}

	e.ui.Println("Elastic Load Balancers To Manage:")
	for _, s := range cfg.ELBSites {
		e.ui.Printf("    %s:%d - [%s]\n", s.Name, s.Port, strings.Join(s.Domains, ","))
	}

	e.ui.Printf("Create daily Lambda function trigger:    %t\n", cfg.CreateTriggerRule)
}

// finalize provisions the remote resources, renders and packages the
// configuration, and uploads the function. The first failure aborts;
// already-created remote resources are deliberately not rolled back, and
// partial local artifacts are left on disk for inspection.
func (e *Engine) finalize() error {
	cfg := e.cfg
	e.ui.PrintHeader("Making Requested Changes")

	snsARN := ""
	if cfg.UseSNS {
		e.ui.Printf("Creating SNS Topic for Notifications ")
		arn, err := e.prov.EnsureTopic(cfg.SNSNotifyEmail)
		if err != nil {
			e.ui.Fail()
			return err
		}
		e.ui.OK()
		snsARN = arn
	}

	if cfg.CreateS3ConfigBucket {
		e.ui.Printf("Creating S3 Configuration Bucket ")
		if err := e.prov.CreateBucket(cfg.S3ConfigBucket); err != nil {
			e.ui.Fail()
			return err
		}
		e.ui.OK()
	}

	if cfg.UseHTTPChallenges && cfg.CreateS3ChallengeBucket {
		e.ui.Printf("Creating S3 Challenge Bucket ")
		if err := e.prov.CreateWebsiteBucket(cfg.S3ChallengeBucket); err != nil {
			e.ui.Fail()
			return err
		}
		e.ui.OK()
	}

	if cfg.CreateIAMRole {
		policy, err := provision.PolicyDocument(
			[]string{cfg.S3ConfigBucket, cfg.S3ChallengeBucket},
			snsARN,
		)
		if err != nil {
			return err
		}

		e.ui.Printf("Creating IAM Role ")
		if _, err := e.prov.EnsureRole(cfg.IAMRoleName, policy); err != nil {
			e.ui.Fail()
			return err
		}
		e.ui.OK()

		e.ui.Println("Waiting for the IAM role to become usable...")
		if err := e.prov.WaitForRoleReady(cfg.IAMRoleName); err != nil {
			return err
		}
	}

	vars, err := cfg.TemplateVars(snsARN)
	if err != nil {
		return err
	}

	e.ui.Printf("Writing Configuration File ")
	if err := render.File(e.paths.TemplateFile, e.paths.RenderedFile, vars); err != nil {
		e.ui.Fail()
		return err
	}
	e.ui.OK()

	if err := e.writeSnapshot(); err != nil {
		return err
	}

	if err := e.buildArchive(); err != nil {
		return err
	}

	e.ui.Println("Configuring Lambda Function:")
	roleARN, err := e.prov.RoleARN(cfg.IAMRoleName)
	if err != nil {
		return err
	}
	e.ui.Printf("    IAM ARN: %s\n", roleARN)

	e.ui.Printf("    Uploading Function ")
	fn, err := e.prov.CreateFunction(cfg.FunctionName(), roleARN, e.paths.ArchiveFile)
	if err != nil {
		e.ui.Fail()
		return err
	}
	e.ui.OK()

	if cfg.CreateTriggerRule {
		e.ui.Printf("    Setting daily Lambda function trigger ")
		if err := e.prov.CreateDailyRule(fn, roleARN); err != nil {
			e.ui.Fail()
			return err
		}
		e.ui.OK()
	}

	e.printTestingNotes()
	return nil
}

// writeSnapshot saves the operator's answers next to the rendered artifact
// so a later session (or the update path) can inspect what was chosen.
func (e *Engine) writeSnapshot() error {
	snapshot, err := yaml.Marshal(e.cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(e.paths.SnapshotFile, snapshot, 0o644); err != nil {
		log.Error(
			"Error writing settings snapshot",
			rz.Err(err),
			rz.String("snapshot_path", e.paths.SnapshotFile),
		)
		return err
	}
	return nil
}

func (e *Engine) buildArchive() error {
	e.ui.Println("Creating Zip File To Upload To Lambda")
	for _, m := range e.paths.manifest() {
		e.ui.Printf("    Adding '%s'\n", m.Name)
	}

	if err := archive.Build(e.paths.ArchiveFile, e.paths.manifest()); err != nil {
		e.ui.Failln("Zip File Creation Failed")
		return err
	}

	e.ui.Println("Zip File Created Successfully")
	return nil
}

func (e *Engine) printTestingNotes() {
	e.ui.PrintHeader("Testing")
	e.ui.WriteString("You may want to test this before you set it to be recurring. Click on the " +
		"'Test' button in the AWS Console for the lambda-letsencrypt function. The " +
		"data you provide to this function does not matter. Make sure to review the " +
		"logs after it finishes and check for anything out of the ordinary.")
	e.ui.Println()
	e.ui.WriteString("It will take at least 2 runs before your certificates are issued, maybe 3 " +
		"depending on how fast CloudFront responds. This is because it needs one try " +
		"to configure CloudFront, one to submit the challenge and have it verified, " +
		"and one final run to issue the certificate and configure the CloudFront " +
		"distribution.")
}

// UpdateLambda re-packages the archive from the configuration rendered by a
// previous session and uploads it to an existing function chosen by the
// operator. No wizard steps run on this path.
func UpdateLambda(
	ui *terminal.UI,
	prov provision.Provisioner,
	paths Paths,
) error {
	ui.PrintHeader("Updating Lambda Function")

	if _, err := os.Stat(paths.RenderedFile); err != nil {
		ui.Failln(fmt.Sprintf(
			"Missing %s file which is created using the %s template; run the wizard first.",
			paths.RenderedFile, paths.TemplateFile))
		return err
	}

	ui.Println("Creating Zip File To Upload To Lambda")
	if err := archive.Build(paths.ArchiveFile, paths.manifest()); err != nil {
		ui.Failln("Zip File Creation Failed")
		return err
	}
	ui.Println("Zip File Created Successfully")

	functions, err := prov.ListFunctions()
	if err != nil {
		return err
	}
	options := make([]terminal.Option, len(functions))
	for i, name := range functions {
		options[i] = terminal.Option{Selector: i, Prompt: name, Value: name}
	}
	value, _ := ui.GetSelection(
		"Select function to update:",
		options,
		"Which Lambda function?",
		false,
	)
	name, _ := value.(string)

	ui.Printf("Uploading Function ")
	if err := prov.UpdateFunctionCode(name, paths.ArchiveFile); err != nil {
		ui.Fail()
		return err
	}
	ui.OK()

	return nil
}
