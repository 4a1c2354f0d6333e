package model

// Coin defines a custom coin type
type Coin string

const (
	// NoCoin is an undefined coin
	NoCoin Coin = ""
	// AllCoins matches any coin
	AllCoins Coin = "*"
	// BTC represents bitcoin
	BTC Coin = "BTC"
	// ETH represents the ethereum token
	ETH Coin = "ETH"
	// SOL represents solana
	SOL Coin = "SOL"
	// LINK represents link
	LINK Coin = "LINK"
	// DOT represents the dot
	DOT Coin = "DOT"
	// XRP represents the xrp token
	XRP Coin = "XRP"
	// DOGE represents the doge token
	DOGE Coin = "DOGE"
)

// Coins contains the tradeable coins.
var Coins = map[string]Coin{
	"BTC":  BTC,
	"ETH":  ETH,
	"SOL":  SOL,
	"LINK": LINK,
	"DOT":  DOT,
	"XRP":  XRP,
	"DOGE": DOGE,
}

func KnownCoins() []string {
	cc := make([]string, len(Coins))
	i := 0
	for c := range Coins {
		cc[i] = c
		i++
	}
	return cc
}

// Tier defines the liquidity tier of a coin, used for leverage caps.
type Tier byte

const (
	// SmallCap is the default tier for anything we dont know better.
	SmallCap Tier = iota
	// LargeCap covers the established alt coins.
	LargeCap
	// Major covers the deep books e.g. BTC / ETH.
	Major
)

var tiers = map[Coin]Tier{
	BTC:  Major,
	ETH:  Major,
	SOL:  LargeCap,
	LINK: LargeCap,
	DOT:  LargeCap,
	XRP:  LargeCap,
}

// CoinTier returns the liquidity tier for the given coin.
func CoinTier(c Coin) Tier {
	if t, ok := tiers[c]; ok {
		return t
	}
	return SmallCap
}

func (t Tier) String() string {
	switch t {
	case Major:
		return "major"
	case LargeCap:
		return "large-cap"
	default:
		return "small-cap"
	}
}
