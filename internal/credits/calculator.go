// Package credits converts platform activity into credits and credits into
// currency. All arithmetic uses decimals; float rounding must never leak
// into a ledger.
package credits

import (
	"github.com/shopspring/decimal"
)

// VoiceTier selects the per-minute voice pricing band.
type VoiceTier string

const (
	VoiceTierStandard VoiceTier = "standard"
	VoiceTierPremium  VoiceTier = "premium"
)

// Per-unit rates in credits. Premium voices pay the base minute rate plus a
// flat per-minute surcharge, so premium never prices below standard.
var (
	RateVoiceMinute         = decimal.NewFromFloat(1.0)
	RateTTSMinute           = decimal.NewFromFloat(0.1)
	RatePremiumSurcharge    = decimal.NewFromFloat(2.0)
	RateAIRequest           = decimal.NewFromFloat(0.5)
	RateTranscriptionMinute = decimal.NewFromFloat(0.3)

	// Currency conversion. One credit is one US cent; EUR is derived from
	// the USD price with a fixed multiplier, never looked up live.
	USDPerCredit = decimal.NewFromFloat(0.01)
	EURPerUSD    = decimal.NewFromFloat(0.92)
)

const (
	creditScale = 2
	costScale   = 4

	projectionDays = 30
)

// Calculator prices calls, AI usage, and transcription in credits. The zero
// value is ready to use.
type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// CallCredits prices a call: voice minutes at the tier rate, TTS synthesis
// for the same minutes, and a flat rate per AI request. Rounded half-up to
// two places. Negative inputs are not rejected and price negative; callers
// feed raw provider durations here and pricing must never fail a ledger
// write. TODO: decide whether negative provider durations should instead be
// clamped at ingestion, before they reach pricing.
func (c *Calculator) CallCredits(durationMinutes decimal.Decimal, tier VoiceTier, aiRequests int64) decimal.Decimal {
	perMinute := RateVoiceMinute.Add(RateTTSMinute)
	if tier == VoiceTierPremium {
		perMinute = perMinute.Add(RatePremiumSurcharge)
	}
	total := durationMinutes.Mul(perMinute).
		Add(decimal.NewFromInt(aiRequests).Mul(RateAIRequest))
	return total.Round(creditScale)
}

// TranscriptionCredits prices transcribed audio by the minute.
func (c *Calculator) TranscriptionCredits(minutes decimal.Decimal) decimal.Decimal {
	return minutes.Mul(RateTranscriptionMinute).Round(creditScale)
}

// Projection is a 30-day spend estimate extrapolated from one day of usage.
type Projection struct {
	Credits decimal.Decimal
	CostUSD decimal.Decimal
	CostEUR decimal.Decimal
}

// MonthlyProjection extrapolates a single day's credit consumption linearly
// over 30 days and prices the result.
func (c *Calculator) MonthlyProjection(dailyCredits decimal.Decimal) Projection {
	monthly := dailyCredits.Mul(decimal.NewFromInt(projectionDays)).Round(creditScale)
	return Projection{
		Credits: monthly,
		CostUSD: c.CostUSD(monthly),
		CostEUR: c.CostEUR(monthly),
	}
}

// CostUSD converts credits to US dollars.
func (c *Calculator) CostUSD(credits decimal.Decimal) decimal.Decimal {
	return credits.Mul(USDPerCredit).Round(costScale)
}

// CostEUR converts credits to euros. Always derived from the USD price so
// the two costs stay consistent for any credit amount.
func (c *Calculator) CostEUR(credits decimal.Decimal) decimal.Decimal {
	return c.CostUSD(credits).Mul(EURPerUSD).Round(costScale)
}
