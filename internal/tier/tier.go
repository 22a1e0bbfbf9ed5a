// Package tier maps cumulative counters to named tiers and ad reward multipliers.
package tier

import "github.com/shopspring/decimal"

// Tier is a named bracket with its lower bound.
type Tier struct {
	Name      string `json:"name"`
	Threshold int    `json:"threshold"`
}

// bracket pairs a tier with the ad multiplier it grants.
type bracket struct {
	Tier
	multiplier decimal.Decimal
}

// Descending by threshold; the first match wins.
var referralBrackets = []bracket{
	{Tier{"Legendary", 500}, decimal.RequireFromString("2.0")},
	{Tier{"Mythic", 250}, decimal.RequireFromString("1.8")},
	{Tier{"Epic", 100}, decimal.RequireFromString("1.5")},
	{Tier{"Rare", 50}, decimal.RequireFromString("1.3")},
	{Tier{"Uncommon", 25}, decimal.RequireFromString("1.2")},
	{Tier{"Common", 10}, decimal.RequireFromString("1.1")},
	{Tier{"Novice", 0}, decimal.RequireFromString("1.0")},
}

var miningTiers = []Tier{
	{"Diamond", 60},
	{"Platinum", 50},
	{"Gold", 30},
	{"Silver", 14},
	{"Bronze", 7},
	{"Iron", 3},
	{"Stone", 0},
}

// Referral returns the referral tier for a total referral count.
func Referral(totalReferrals int) Tier {
	return referralBracket(totalReferrals).Tier
}

// Mining returns the mining tier for a mining streak.
func Mining(streak int) Tier {
	for _, t := range miningTiers {
		if streak >= t.Threshold {
			return t
		}
	}
	return miningTiers[len(miningTiers)-1]
}

// AdMultiplier returns the ad reward multiplier for a total referral count.
func AdMultiplier(totalReferrals int) decimal.Decimal {
	return referralBracket(totalReferrals).multiplier
}

// ApplyAdMultiplier returns floor(base * multiplier) for the account's tier.
func ApplyAdMultiplier(base int64, totalReferrals int) int64 {
	return decimal.NewFromInt(base).Mul(AdMultiplier(totalReferrals)).Floor().IntPart()
}

func referralBracket(n int) bracket {
	for _, b := range referralBrackets {
		if n >= b.Threshold {
			return b
		}
	}
	// Negative counts never occur; treat them as the lowest tier.
	return referralBrackets[len(referralBrackets)-1]
}
