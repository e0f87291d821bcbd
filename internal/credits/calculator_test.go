package credits

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCallCredits(t *testing.T) {
	calc := NewCalculator()

	cases := []struct {
		name       string
		minutes    float64
		tier       VoiceTier
		aiRequests int64
		want       string
	}{
		{"standard five minutes", 5.0, VoiceTierStandard, 0, "5.5"},
		{"premium three minutes", 3.0, VoiceTierPremium, 0, "9.3"},
		{"zero duration", 0.0, VoiceTierStandard, 0, "0"},
		{"premium with ai requests", 120.0, VoiceTierPremium, 1000, "872"},
		{"ai requests only", 0.0, VoiceTierStandard, 3, "1.5"},
		{"unknown tier priced as standard", 5.0, VoiceTier("elevenlabs_x"), 0, "5.5"},
		{"empty tier priced as standard", 5.0, VoiceTier(""), 0, "5.5"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := calc.CallCredits(decimal.NewFromFloat(tc.minutes), tc.tier, tc.aiRequests)
			want := decimal.RequireFromString(tc.want)
			if !got.Equal(want) {
				t.Fatalf("CallCredits(%v, %s, %d) = %s, want %s", tc.minutes, tc.tier, tc.aiRequests, got, want)
			}
		})
	}
}

func TestCallCreditsNegativeInputsDoNotPanic(t *testing.T) {
	calc := NewCalculator()

	got := calc.CallCredits(decimal.NewFromFloat(-2.0), VoiceTierStandard, 0)
	if got.Sign() > 0 {
		t.Fatalf("negative duration priced positive: %s", got)
	}
	got = calc.CallCredits(decimal.Zero, VoiceTierStandard, -10)
	if got.Sign() > 0 {
		t.Fatalf("negative request count priced positive: %s", got)
	}
}

func TestPremiumNeverCheaperThanStandard(t *testing.T) {
	if RatePremiumSurcharge.Sign() < 0 {
		t.Fatalf("premium surcharge is negative: %s", RatePremiumSurcharge)
	}
	calc := NewCalculator()
	minutes := decimal.NewFromFloat(7.5)
	std := calc.CallCredits(minutes, VoiceTierStandard, 0)
	prem := calc.CallCredits(minutes, VoiceTierPremium, 0)
	if prem.LessThan(std) {
		t.Fatalf("premium %s priced below standard %s", prem, std)
	}
}

func TestCostConversion(t *testing.T) {
	calc := NewCalculator()

	credits := decimal.NewFromFloat(100.0)
	if got := calc.CostUSD(credits); !got.Equal(decimal.RequireFromString("1")) {
		t.Fatalf("CostUSD(100) = %s, want 1.00", got)
	}
	if got := calc.CostEUR(credits); !got.Equal(decimal.RequireFromString("0.92")) {
		t.Fatalf("CostEUR(100) = %s, want 0.92", got)
	}

	// EUR is always USD times the fixed multiplier.
	credits = decimal.NewFromFloat(5.5)
	usd := calc.CostUSD(credits)
	if !usd.Equal(decimal.RequireFromString("0.055")) {
		t.Fatalf("CostUSD(5.5) = %s, want 0.055", usd)
	}
	eur := calc.CostEUR(credits)
	if !eur.Equal(decimal.RequireFromString("0.0506")) {
		t.Fatalf("CostEUR(5.5) = %s, want 0.0506", eur)
	}
}

func TestTranscriptionCredits(t *testing.T) {
	calc := NewCalculator()
	got := calc.TranscriptionCredits(decimal.NewFromFloat(10.0))
	if !got.Equal(decimal.RequireFromString("3")) {
		t.Fatalf("TranscriptionCredits(10) = %s, want 3", got)
	}
}

func TestMonthlyProjection(t *testing.T) {
	calc := NewCalculator()
	p := calc.MonthlyProjection(decimal.NewFromFloat(10.0))
	if !p.Credits.Equal(decimal.RequireFromString("300")) {
		t.Fatalf("projection credits = %s, want 300", p.Credits)
	}
	if !p.CostUSD.Equal(decimal.RequireFromString("3")) {
		t.Fatalf("projection usd = %s, want 3", p.CostUSD)
	}
	if !p.CostEUR.Equal(decimal.RequireFromString("2.76")) {
		t.Fatalf("projection eur = %s, want 2.76", p.CostEUR)
	}
}
