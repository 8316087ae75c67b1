package policy

import (
	"strings"
	"testing"

	"github.com/JonMunkholm/micareg/internal/remediation"
)

func proposal(conf float64, risk remediation.RiskLevel, tt remediation.TransformationType) remediation.Proposal {
	return remediation.Proposal{
		TaskID:             "t",
		ProposedValue:      "new",
		Confidence:         conf,
		TransformationType: tt,
		RiskLevel:          risk,
	}
}

func TestValidate(t *testing.T) {
	pol := Default()

	tests := []struct {
		name       string
		p          remediation.Proposal
		column     string
		wantOK     bool
		wantReason string
	}{
		{"accepted", proposal(0.8, remediation.RiskLow, remediation.TransformEncodingFix), "ae_address", true, ""},
		{"at floor", proposal(0.5, remediation.RiskMedium, remediation.TransformDateFix), "ac_lastupdate", true, ""},
		{"low confidence", proposal(0.49, remediation.RiskLow, remediation.TransformEncodingFix), "ae_address", false, "Confidence too low"},
		{"forbidden column", proposal(1.0, remediation.RiskLow, remediation.TransformEncodingFix), "ae_lei", false, "Forbidden column"},
		{"forbidden column beats low confidence", proposal(0.1, remediation.RiskHigh, remediation.TransformDateFix), "ae_lei", false, "Forbidden column"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := pol.Validate(tt.p, "old", tt.column)
			if ok != tt.wantOK {
				t.Errorf("Validate() ok = %v, want %v (reason %q)", ok, tt.wantOK, reason)
			}
			if !strings.Contains(reason, tt.wantReason) || (tt.wantReason == "" && reason != "") {
				t.Errorf("reason = %q, want it to contain %q", reason, tt.wantReason)
			}
		})
	}
}

func TestValidate_ForbiddenColumnAnyProposal(t *testing.T) {
	pol := Default()
	for _, risk := range []remediation.RiskLevel{remediation.RiskLow, remediation.RiskMedium, remediation.RiskHigh} {
		for _, conf := range []float64{0, 0.5, 0.9, 1} {
			// a trailing-dot trim is still an LEI edit
			p := proposal(conf, risk, remediation.TransformEncodingFix)
			p.ProposedValue = "529900T8BM49AURSDO55"
			if ok, _ := pol.Validate(p, "529900T8BM49AURSDO55.", "ae_lei"); ok {
				t.Errorf("ae_lei edit accepted with risk %s confidence %v", risk, conf)
			}
		}
	}
}

func TestValidate_ForbiddenTransformation(t *testing.T) {
	pol := Default()
	pol.ForbiddenTransformations[remediation.TransformAddressFix] = true

	ok, reason := pol.Validate(proposal(0.99, remediation.RiskLow, remediation.TransformAddressFix), "a", "ae_address")
	if ok || !strings.Contains(reason, "Forbidden transformation") {
		t.Errorf("Validate() = %v, %q", ok, reason)
	}
}

func TestCanAutoApply(t *testing.T) {
	tests := []struct {
		name string
		p    remediation.Proposal
		want bool
	}{
		{"low risk at threshold", proposal(0.9, remediation.RiskLow, remediation.TransformEncodingFix), true},
		{"low risk above", proposal(0.99, remediation.RiskLow, remediation.TransformWebsiteFix), true},
		{"low risk below", proposal(0.89, remediation.RiskLow, remediation.TransformEncodingFix), false},
		{"medium risk certain", proposal(1.0, remediation.RiskMedium, remediation.TransformDateFix), false},
		{"high risk certain", proposal(1.0, remediation.RiskHigh, remediation.TransformEncodingFix), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanAutoApply(tt.p, DefaultAutoApplyThreshold); got != tt.want {
				t.Errorf("CanAutoApply() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanAutoApply_NeverForNonLowRisk(t *testing.T) {
	for _, risk := range []remediation.RiskLevel{remediation.RiskMedium, remediation.RiskHigh} {
		for conf := 0.0; conf <= 1.0; conf += 0.125 {
			if CanAutoApply(proposal(conf, risk, remediation.TransformEncodingFix), 0) {
				t.Errorf("CanAutoApply(%s, %v) = true", risk, conf)
			}
		}
	}
}

func TestRiskFor(t *testing.T) {
	tests := []struct {
		in   remediation.TransformationType
		want remediation.RiskLevel
	}{
		{remediation.TransformEncodingFix, remediation.RiskLow},
		{remediation.TransformCountryNormalize, remediation.RiskLow},
		{remediation.TransformWebsiteFix, remediation.RiskLow},
		{remediation.TransformDateFix, remediation.RiskMedium},
		{remediation.TransformAddressFix, remediation.RiskMedium},
		{"STANDARDIZATION", remediation.RiskHigh},
	}

	for _, tt := range tests {
		if got := RiskFor(tt.in); got != tt.want {
			t.Errorf("RiskFor(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
