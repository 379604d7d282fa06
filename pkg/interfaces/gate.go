package interfaces

import "github.com/m-mizutani/agriai/pkg/model"

// FeatureGate decides whether a subscription tier may use a capability
type FeatureGate interface {
	IsAllowed(tier model.Tier, capability model.Capability) bool
	Check(tier model.Tier, capability model.Capability) error
}
