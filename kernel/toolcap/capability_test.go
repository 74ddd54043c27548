package toolcap

import "testing"

type annotatorProfile struct{}

func (annotatorProfile) Capability() Capability {
	return Capability{
		Operations: []Operation{OperationFileRead, "", OperationFileWrite, OperationFileRead},
		Risk:       RiskMedium,
	}
}

type risklessProfile struct{}

func (risklessProfile) Capability() Capability {
	return Capability{Operations: []Operation{OperationNetwork}}
}

func TestOf_DefaultsToUnknown(t *testing.T) {
	for _, value := range []any{nil, "plain string", 42} {
		cap := Of(value)
		if cap.Risk != RiskUnknown {
			t.Fatalf("Of(%v) risk = %q, want %q", value, cap.Risk, RiskUnknown)
		}
		if len(cap.Operations) != 0 {
			t.Fatalf("Of(%v) operations = %#v, want none", value, cap.Operations)
		}
	}
}

func TestOf_NormalizesDeclaredProfile(t *testing.T) {
	cap := Of(annotatorProfile{})
	if cap.Risk != RiskMedium {
		t.Fatalf("risk = %q, want %q", cap.Risk, RiskMedium)
	}
	if len(cap.Operations) != 2 {
		t.Fatalf("operations = %#v, want deduped read+write", cap.Operations)
	}
	if !cap.HasOperation(OperationFileRead) || !cap.HasOperation(OperationFileWrite) {
		t.Fatalf("missing declared operation: %#v", cap.Operations)
	}
	if cap.HasOperation(OperationNetwork) {
		t.Fatalf("unexpected network operation: %#v", cap.Operations)
	}
}

func TestOf_FillsMissingRisk(t *testing.T) {
	cap := Of(risklessProfile{})
	if cap.Risk != RiskUnknown {
		t.Fatalf("risk = %q, want %q", cap.Risk, RiskUnknown)
	}
	if !cap.HasOperation(OperationNetwork) {
		t.Fatalf("operations = %#v, want network", cap.Operations)
	}
}
