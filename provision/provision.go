// Package provision is the boundary between the setup wizard and the cloud
// platform. The wizard only sees the Provisioner interface; the AWS
// implementation wraps one SDK client per service.
package provision

// Zone is a hosted DNS zone.
type Zone struct {
	ID   string
	Name string
}

// Distribution is a content-delivery distribution with its alias
// hostnames.
type Distribution struct {
	ID      string
	Comment string
	Aliases []string
}

// Function identifies a deployed lambda function.
type Function struct {
	Name string
	ARN  string
}

// Provisioner is the full set of remote operations the wizard performs.
// Every call blocks until the platform answers; the wizard never issues
// overlapping calls.
type Provisioner interface {
	// SetRegion pins the region used for regional operations. Listing
	// calls issued before the operator has chosen a region use the
	// environment default.
	SetRegion(region string)

	ListRegions() ([]string, error)

	ListBuckets() ([]string, error)
	CreateBucket(name string) error
	CreateWebsiteBucket(name string) error

	ListRoles() ([]string, error)
	EnsureRole(name string, policyDocument string) (string, error)
	RoleARN(name string) (string, error)
	WaitForRoleReady(name string) error

	EnsureTopic(email string) (string, error)

	ListDistributions() ([]Distribution, error)
	ListLoadBalancers() ([]string, error)

	ListZones() ([]Zone, error)
	ZoneIDForDomain(name string) (string, error)

	ListFunctions() ([]string, error)
	CreateFunction(name string, roleARN string, zipPath string) (*Function, error)
	UpdateFunctionCode(name string, zipPath string) error

	CreateDailyRule(fn *Function, roleARN string) error
}
