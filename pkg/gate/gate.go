package gate

import (
	"context"
	_ "embed"
	"os"

	"github.com/m-mizutani/agriai/pkg/model"
	"github.com/m-mizutani/agriai/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/rego"
)

//go:embed policy/gate.rego
var defaultPolicy string

const query = "data.gate.allow"

// Gate decides whether a subscription tier may use a capability. Decisions are
// evaluated from a prepared Rego query and never perform I/O.
type Gate struct {
	query *rego.PreparedEvalQuery
}

type config struct {
	policyFile string
}

// Option is a functional option for New
type Option func(*config)

// WithPolicyFile replaces the embedded policy with a Rego file
func WithPolicyFile(path string) Option {
	return func(c *config) {
		c.policyFile = path
	}
}

// New prepares the gate policy
func New(ctx context.Context, opts ...Option) (*Gate, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	name, policy := "gate.rego", defaultPolicy
	if cfg.policyFile != "" {
		data, err := os.ReadFile(cfg.policyFile)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read gate policy",
				goerr.V("path", cfg.policyFile), goerr.T(model.TagConfiguration))
		}
		name, policy = cfg.policyFile, string(data)
	}

	prepared, err := rego.New(
		rego.Query(query),
		rego.Module(name, policy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare gate policy",
			goerr.V("query", query), goerr.V("policy", name), goerr.T(model.TagConfiguration))
	}

	return &Gate{query: &prepared}, nil
}

// IsAllowed reports whether tier may use capability. An evaluation failure denies.
func (g *Gate) IsAllowed(tier model.Tier, capability model.Capability) bool {
	ctx := context.Background()
	input := map[string]any{
		"tier":       string(tier),
		"capability": string(capability),
	}

	rs, err := g.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		logging.Default().Error("failed to evaluate gate policy",
			logging.ErrAttr(err), "tier", tier, "capability", capability)
		return false
	}
	return rs.Allowed()
}

// Check returns an upgrade-required error if tier may not use capability
func (g *Gate) Check(tier model.Tier, capability model.Capability) error {
	if g.IsAllowed(tier, capability) {
		return nil
	}
	return goerr.New("upgrade required",
		goerr.V("tier", tier),
		goerr.V("capability", capability),
		goerr.T(model.TagUpgradeRequired),
		model.WithCode(model.CodeUpgradeRequired),
	)
}
