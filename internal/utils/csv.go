package utils

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"perpScalper/internal/domain"
)

var frameHeader = []string{
	"open_time", "symbol", "interval", "open", "high", "low", "close", "volume",
	"ema_short", "ema_mid", "ema_long", "rsi", "atr", "volume_ema",
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteFrames writes indicator frames as CSV rows. Indicators that have not warmed
// up yet are written as empty cells.
func WriteFrames(w io.Writer, frames []domain.IndicatorFrame) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(frameHeader); err != nil {
		return err
	}
	for _, f := range frames {
		if err := writer.Write([]string{
			f.OpenTime.UTC().Format(time.RFC3339),
			f.Symbol,
			f.Interval,
			formatFloat(f.Open),
			formatFloat(f.High),
			formatFloat(f.Low),
			formatFloat(f.Close),
			formatFloat(f.Volume),
			formatFloat(f.EMAShort),
			formatFloat(f.EMAMid),
			formatFloat(f.EMALong),
			formatFloat(f.RSI),
			formatFloat(f.ATR),
			formatFloat(f.VolumeEMA),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func WriteFramesToCSV(frames []domain.IndicatorFrame, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := WriteFrames(file, frames); err != nil {
		return err
	}
	return file.Close()
}
