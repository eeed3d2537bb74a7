package indicators

// MinEntryBars is the number of candles the entry pass needs so the long EMA
// has warmed up with some margin.
const MinEntryBars = 220

// Exit checks look at a shorter window; they only need the short/mid EMAs and RSI.
const (
	ExitFetchLimit = 100
	MinExitBars    = 51
)

// Profile holds the indicator windows used for one candle timeframe.
type Profile struct {
	Timeframe    string
	EMAShort     int
	EMAMid       int
	EMALong      int
	VolumeSpan   int
	RSIPeriod    int
	ATRPeriod    int
	HistoryLimit int
}

var defaultProfile = Profile{
	EMAShort:     9,
	EMAMid:       21,
	EMALong:      200,
	VolumeSpan:   20,
	RSIPeriod:    5,
	ATRPeriod:    14,
	HistoryLimit: 250,
}

// Shorter timeframes react faster, so RSI and ATR shrink with them.
var profiles = map[string]Profile{
	"1m": withWindows(defaultProfile, 3, 7, 150),
	"3m": withWindows(defaultProfile, 4, 10, 200),
	"5m": defaultProfile,
}

func withWindows(p Profile, rsi, atr, history int) Profile {
	p.RSIPeriod = rsi
	p.ATRPeriod = atr
	p.HistoryLimit = history
	return p
}

// ProfileFor returns the indicator profile for a timeframe. Timeframes
// without a dedicated entry use the 5m profile.
func ProfileFor(timeframe string) Profile {
	p, ok := profiles[timeframe]
	if !ok {
		p = defaultProfile
	}
	p.Timeframe = timeframe
	return p
}

// FetchLimit is the number of candles to request for an entry evaluation.
func (p Profile) FetchLimit() int {
	if p.HistoryLimit < MinEntryBars {
		return MinEntryBars
	}
	return p.HistoryLimit
}
