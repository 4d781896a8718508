// Package glft implements the Gueant-Lehalle-Fernandez-Tapia style
// inventory target used by the quoting engine: given the current signed
// exposure it returns the risk-adjusted inventory level to steer toward,
// pulled toward zero and damped by risk aversion, volatility and
// execution cost.
package glft

import "math"

// Params are the model coefficients.
type Params struct {
	// RiskAversion is the gamma coefficient; higher pulls the target
	// harder toward zero.
	RiskAversion float64
	// Volatility is the sigma estimate of the quoted instrument.
	Volatility float64
	// ExecutionCost penalizes rebalancing, softening the pull.
	ExecutionCost float64
	// MaxInventory clamps the returned target, zero disables the clamp.
	MaxInventory float64
}

// DefaultParams mirror the original model defaults.
func DefaultParams() Params {
	return Params{
		RiskAversion:  0.1,
		Volatility:    0.02,
		ExecutionCost: 0.001,
		MaxInventory:  100,
	}
}

// Model computes inventory targets. It holds only immutable parameters,
// so concurrent calls are safe.
type Model struct {
	params  Params
	damping float64
}

// New creates a model from the given parameters.
func New(params Params) *Model {
	gamma := params.RiskAversion
	if gamma < 0 {
		gamma = 0
	}
	sigma := params.Volatility
	kappa := params.ExecutionCost
	if kappa < 0 {
		kappa = 0
	}
	return &Model{
		params:  params,
		damping: 1 + gamma*sigma*sigma + kappa,
	}
}

// Params returns the model coefficients.
func (m *Model) Params() Params {
	return m.params
}

// ComputeTarget maps the current signed inventory (positive = long) to
// the level the strategy should steer toward. Pure and stateless.
func (m *Model) ComputeTarget(signedInventory float64) float64 {
	target := signedInventory / m.damping
	if max := m.params.MaxInventory; max > 0 {
		target = math.Max(-max, math.Min(max, target))
	}
	return target
}
