package finding

import "testing"

func TestSeverity_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		severity Severity
		want     bool
	}{
		{"critical is valid", SeverityCritical, true},
		{"high is valid", SeverityHigh, true},
		{"medium is valid", SeverityMedium, true},
		{"low is valid", SeverityLow, true},
		{"info is valid", SeverityInfo, true},
		{"empty is invalid", Severity(""), false},
		{"unknown is invalid", Severity("unknown"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.severity.IsValid(); got != tt.want {
				t.Errorf("Severity.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSeverity_AtLeast(t *testing.T) {
	tests := []struct {
		name      string
		severity  Severity
		threshold Severity
		want      bool
	}{
		{"critical at least high", SeverityCritical, SeverityHigh, true},
		{"high at least high", SeverityHigh, SeverityHigh, true},
		{"medium not at least high", SeverityMedium, SeverityHigh, false},
		{"info at least info", SeverityInfo, SeverityInfo, true},
		{"low not at least medium", SeverityLow, SeverityMedium, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.severity.AtLeast(tt.threshold); got != tt.want {
				t.Errorf("Severity.AtLeast(%v) = %v, want %v", tt.threshold, got, tt.want)
			}
		})
	}
}

func TestCompareSeverity(t *testing.T) {
	if CompareSeverity(SeverityCritical, SeverityInfo) <= 0 {
		t.Error("expected critical > info")
	}
	if CompareSeverity(SeverityLow, SeverityHigh) >= 0 {
		t.Error("expected low < high")
	}
	if CompareSeverity(SeverityMedium, SeverityMedium) != 0 {
		t.Error("expected medium == medium")
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Severity
		wantErr bool
	}{
		{"lowercase high", "high", SeverityHigh, false},
		{"uppercase critical", "CRITICAL", SeverityCritical, false},
		{"mixed case info", "Info", SeverityInfo, false},
		{"unknown string", "blocker", "", true},
		{"empty string", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSeverity(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSeverity(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSeverity(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeSeverity(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Severity
	}{
		{"critical passthrough", "CRITICAL", SeverityCritical},
		{"high passthrough", "high", SeverityHigh},
		{"semgrep error", "ERROR", SeverityHigh},
		{"semgrep warning", "WARNING", SeverityMedium},
		{"npm moderate", "moderate", SeverityMedium},
		{"low passthrough", "LOW", SeverityLow},
		{"info passthrough", "INFO", SeverityInfo},
		{"trivy unknown", "UNKNOWN", SeverityInfo},
		{"trivy negligible", "NEGLIGIBLE", SeverityInfo},
		{"garbage maps to info", "BLOCKER", SeverityInfo},
		{"empty maps to info", "", SeverityInfo},
		{"whitespace trimmed", "  High  ", SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeSeverity(tt.raw); got != tt.want {
				t.Errorf("NormalizeSeverity(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestAllSeverities_Ordered(t *testing.T) {
	all := AllSeverities()
	if len(all) != 5 {
		t.Fatalf("expected 5 severities, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if CompareSeverity(all[i-1], all[i]) <= 0 {
			t.Errorf("expected %v to outrank %v", all[i-1], all[i])
		}
	}
}
