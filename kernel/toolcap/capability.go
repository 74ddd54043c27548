// Package toolcap lets tools declare a coarse side-effect profile that
// policy hooks can inspect before dispatch.
package toolcap

import "slices"

// Operation is one normalized class of tool side effect.
type Operation string

const (
	OperationFileRead  Operation = "file_read"
	OperationFileWrite Operation = "file_write"
	OperationNetwork   Operation = "network"
)

// RiskLevel is a coarse risk signal for policy decisions.
type RiskLevel string

const (
	RiskUnknown RiskLevel = "unknown"
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
)

// Capability describes one tool's declared side effects. Detection reads an
// image and calls a vision provider; drawing reads and writes image files.
type Capability struct {
	Operations []Operation `json:"operations,omitempty"`
	Risk       RiskLevel   `json:"risk,omitempty"`
}

// HasOperation reports whether op is declared.
func (c Capability) HasOperation(op Operation) bool {
	return slices.Contains(c.Operations, op)
}

// normalized fills a missing risk and drops blank or repeated operations.
func (c Capability) normalized() Capability {
	if c.Risk == "" {
		c.Risk = RiskUnknown
	}
	if len(c.Operations) == 0 {
		return c
	}
	out := make([]Operation, 0, len(c.Operations))
	for _, op := range c.Operations {
		if op == "" || slices.Contains(out, op) {
			continue
		}
		out = append(out, op)
	}
	c.Operations = out
	return c
}

// Provider allows a tool to declare its capability.
type Provider interface {
	Capability() Capability
}

// Of returns value's declared capability, normalized, or an unknown-risk
// default when value declares nothing.
func Of(value any) Capability {
	provider, ok := value.(Provider)
	if !ok {
		return Capability{Risk: RiskUnknown}
	}
	return provider.Capability().normalized()
}
