package rules

import (
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return engine
}

func emptyFeatures() map[string]any {
	return FeaturesFromEvidence(&domain.Evidence{})
}

func TestEngineMatches(t *testing.T) {
	engine := newTestEngine(t)

	t.Run("IntExpression", func(t *testing.T) {
		features := emptyFeatures()
		features[FeatureOddHourCount] = int64(3)

		n, err := engine.Matches("odd_hour_count", features)
		if err != nil {
			t.Fatalf("Matches failed: %v", err)
		}
		if n != 3 {
			t.Errorf("expected 3 matches, got %d", n)
		}
	})

	t.Run("BoolExpression", func(t *testing.T) {
		features := emptyFeatures()
		features[FeatureDistinctDevices] = int64(5)

		n, err := engine.Matches("distinct_devices > 2", features)
		if err != nil {
			t.Fatalf("Matches failed: %v", err)
		}
		if n != 1 {
			t.Errorf("expected bool true to count as 1, got %d", n)
		}

		features[FeatureDistinctDevices] = int64(1)
		n, err = engine.Matches("distinct_devices > 2", features)
		if err != nil {
			t.Fatalf("Matches failed: %v", err)
		}
		if n != 0 {
			t.Errorf("expected bool false to count as 0, got %d", n)
		}
	})

	t.Run("TernaryExpression", func(t *testing.T) {
		features := emptyFeatures()
		features[FeatureDistinctIPs] = int64(3)

		n, err := engine.Matches("distinct_ips > 2 ? 1 : 0", features)
		if err != nil {
			t.Fatalf("Matches failed: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 match, got %d", n)
		}
	})

	t.Run("NegativeClampsToZero", func(t *testing.T) {
		n, err := engine.Matches("0 - 5", emptyFeatures())
		if err != nil {
			t.Fatalf("Matches failed: %v", err)
		}
		if n != 0 {
			t.Errorf("expected negative result clamped to 0, got %d", n)
		}
	})

	t.Run("ZeroExpressionIsInert", func(t *testing.T) {
		n, err := engine.Matches("0", emptyFeatures())
		if err != nil {
			t.Fatalf("Matches failed: %v", err)
		}
		if n != 0 {
			t.Errorf("expected 0, got %d", n)
		}
	})
}

func TestValidateExpression(t *testing.T) {
	engine := newTestEngine(t)

	t.Run("ValidExpressions", func(t *testing.T) {
		valid := []string{
			"odd_hour_count",
			"failed_checkins",
			"distinct_devices > 2 ? 1 : 0",
			"missing_geo_count > 0",
			"0",
		}
		for _, expr := range valid {
			if err := engine.ValidateExpression(expr); err != nil {
				t.Errorf("expected %q to validate, got: %v", expr, err)
			}
		}
	})

	t.Run("SyntaxError", func(t *testing.T) {
		if err := engine.ValidateExpression("odd_hour_count >"); err == nil {
			t.Error("expected compile error for broken expression")
		}
	})

	t.Run("UnknownVariable", func(t *testing.T) {
		if err := engine.ValidateExpression("no_such_feature > 1"); err == nil {
			t.Error("expected compile error for unknown variable")
		}
	})

	t.Run("WrongOutputType", func(t *testing.T) {
		if err := engine.ValidateExpression(`"high"`); err == nil {
			t.Error("expected error for string-typed expression")
		}
	})
}

func TestDefaultCatalogue(t *testing.T) {
	engine := newTestEngine(t)

	catalogue := DefaultCatalogue()
	if len(catalogue) != 7 {
		t.Fatalf("expected 7 default rules, got %d", len(catalogue))
	}

	t.Run("AllExpressionsCompile", func(t *testing.T) {
		for _, rule := range catalogue {
			if err := engine.ValidateExpression(rule.Expression); err != nil {
				t.Errorf("rule %s expression failed to compile: %v", rule.Name, err)
			}
		}
	})

	t.Run("AllActiveWithPositiveImpact", func(t *testing.T) {
		for _, rule := range catalogue {
			if rule.Status != domain.RuleActive {
				t.Errorf("rule %s not active by default", rule.Name)
			}
			if rule.ScoreImpact <= 0 {
				t.Errorf("rule %s has non-positive impact %d", rule.Name, rule.ScoreImpact)
			}
		}
	})

	t.Run("ReservedRulesAreInert", func(t *testing.T) {
		features := emptyFeatures()
		features[FeatureTxCount] = int64(50)

		for _, name := range []string{"aadhaar-reuse", "failed-biometrics"} {
			rule := findRule(t, catalogue, name)
			n, err := engine.Matches(rule.Expression, features)
			if err != nil {
				t.Fatalf("Matches failed for %s: %v", name, err)
			}
			if n != 0 {
				t.Errorf("reserved rule %s matched %d times, want 0", name, n)
			}
		}
	})

	t.Run("ThresholdRulesFireAboveTwo", func(t *testing.T) {
		features := emptyFeatures()

		rule := findRule(t, catalogue, "multiple-devices")
		for devices, want := range map[int64]int{1: 0, 2: 0, 3: 1, 10: 1} {
			features[FeatureDistinctDevices] = devices
			n, err := engine.Matches(rule.Expression, features)
			if err != nil {
				t.Fatalf("Matches failed: %v", err)
			}
			if n != want {
				t.Errorf("devices=%d: expected %d, got %d", devices, want, n)
			}
		}
	})
}

func findRule(t *testing.T, catalogue []*domain.FraudRule, name string) *domain.FraudRule {
	t.Helper()
	for _, r := range catalogue {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("rule %s not in catalogue", name)
	return nil
}

func TestFeaturesFromEvidence(t *testing.T) {
	lat := 26.85
	lng := 80.95

	txAt := func(hour int) time.Time {
		return time.Date(2025, 6, 1, hour, 30, 0, 0, time.UTC)
	}

	t.Run("OddHourBoundaries", func(t *testing.T) {
		ev := &domain.Evidence{
			Transactions: []*domain.Transaction{
				{TransactionDate: txAt(22), Latitude: &lat, Longitude: &lng}, // not odd
				{TransactionDate: txAt(23), Latitude: &lat, Longitude: &lng}, // odd
				{TransactionDate: txAt(0), Latitude: &lat, Longitude: &lng},  // odd
				{TransactionDate: txAt(4), Latitude: &lat, Longitude: &lng},  // odd
				{TransactionDate: txAt(5), Latitude: &lat, Longitude: &lng},  // not odd
			},
		}

		features := FeaturesFromEvidence(ev)
		if features[FeatureOddHourCount] != int64(3) {
			t.Errorf("expected odd_hour_count 3, got %v", features[FeatureOddHourCount])
		}
		if features[FeatureTxCount] != int64(5) {
			t.Errorf("expected tx_count 5, got %v", features[FeatureTxCount])
		}
	})

	t.Run("MissingGeo", func(t *testing.T) {
		ev := &domain.Evidence{
			Transactions: []*domain.Transaction{
				{TransactionDate: txAt(12), Latitude: &lat, Longitude: &lng},
				{TransactionDate: txAt(12), Latitude: &lat}, // longitude missing
				{TransactionDate: txAt(12)},                 // both missing
			},
		}

		features := FeaturesFromEvidence(ev)
		if features[FeatureMissingGeoCount] != int64(2) {
			t.Errorf("expected missing_geo_count 2, got %v", features[FeatureMissingGeoCount])
		}
	})

	t.Run("DistinctDevicesAndIPsSkipEmpty", func(t *testing.T) {
		ev := &domain.Evidence{
			Transactions: []*domain.Transaction{
				{TransactionDate: txAt(12), DeviceID: "a", IPAddress: "10.0.0.1"},
				{TransactionDate: txAt(12), DeviceID: "a", IPAddress: "10.0.0.2"},
				{TransactionDate: txAt(12), DeviceID: "b"},
				{TransactionDate: txAt(12)},
			},
		}

		features := FeaturesFromEvidence(ev)
		if features[FeatureDistinctDevices] != int64(2) {
			t.Errorf("expected distinct_devices 2, got %v", features[FeatureDistinctDevices])
		}
		if features[FeatureDistinctIPs] != int64(2) {
			t.Errorf("expected distinct_ips 2, got %v", features[FeatureDistinctIPs])
		}
	})

	t.Run("FailedCheckIns", func(t *testing.T) {
		ev := &domain.Evidence{
			CheckIns: []*domain.CheckIn{
				{Status: domain.CheckInVerified},
				{Status: domain.CheckInFailed},
				{Status: domain.CheckInFailed},
				{Status: domain.CheckInPending},
			},
		}

		features := FeaturesFromEvidence(ev)
		if features[FeatureFailedCheckIns] != int64(2) {
			t.Errorf("expected failed_checkins 2, got %v", features[FeatureFailedCheckIns])
		}
		if features[FeatureCheckInCount] != int64(4) {
			t.Errorf("expected checkin_count 4, got %v", features[FeatureCheckInCount])
		}
	})

	t.Run("EmptyEvidence", func(t *testing.T) {
		features := FeaturesFromEvidence(&domain.Evidence{})
		for name, val := range features {
			if val != int64(0) {
				t.Errorf("expected %s to be 0 for empty evidence, got %v", name, val)
			}
		}
	})
}
