package app

import (
	"fmt"
	"html"
	"strings"
	"time"

	"perpScalper/internal/domain"
	"perpScalper/internal/risk"
)

func sideIcon(side domain.Side) string {
	if side == domain.Short {
		return "🔴"
	}
	return "🟢"
}

func openedMessage(r *OpenResult, notional float64, leverage int, quote string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s <b>New position opened</b>\n\n", sideIcon(r.Side))
	fmt.Fprintf(&sb, "💰 <b>Symbol:</b> %s\n", html.EscapeString(r.Symbol))
	fmt.Fprintf(&sb, "📊 <b>Side:</b> %s\n", r.Side)
	fmt.Fprintf(&sb, "💵 <b>Entry:</b> %.4f %s\n\n", r.EntryPrice, quote)
	fmt.Fprintf(&sb, "📈 <b>Take Profit:</b> %v %s (+%.2f%%)\n", r.TakeProfit, quote, r.Params.TakeProfitPercent)
	fmt.Fprintf(&sb, "💚 <b>Potential profit:</b> ~%.2f %s\n\n", r.PotentialProfit, quote)
	fmt.Fprintf(&sb, "📉 <b>Stop Loss:</b> %v %s (-%.2f%%)\n", r.StopLoss, quote, r.Params.StopLossPercent)
	fmt.Fprintf(&sb, "❌ <b>Max loss:</b> ~%.2f %s\n\n", r.MaxLoss, quote)
	fmt.Fprintf(&sb, "📊 <b>Size:</b> %v contracts\n", r.Quantity)
	fmt.Fprintf(&sb, "⚡️ <b>Leverage:</b> %dx\n", leverage)
	fmt.Fprintf(&sb, "💼 <b>Notional:</b> %.2f %s\n\n", notional*float64(leverage), quote)
	fmt.Fprintf(&sb, "🕐 %s UTC", r.OpenedAt.UTC().Format("02.01.2006 15:04:05"))
	return sb.String()
}

func closedMessage(t domain.Trade, quote string) string {
	if !t.PNLKnown {
		return fmt.Sprintf("🔄 Closed %s %s\nReason: %s", t.Side, html.EscapeString(t.Symbol), t.CloseReason)
	}
	return fmt.Sprintf("🔄 Closed %s %s\nReason: %s\nPnL: %+.2f %s", t.Side, html.EscapeString(t.Symbol), t.CloseReason, t.PNL, quote)
}

func protectionFailedMessage(symbol string, unwound bool) string {
	if unwound {
		return fmt.Sprintf("⚠️ <b>Position open failed</b>\n\nSymbol: %s\nReason: TP/SL not attached\nPosition closed automatically", html.EscapeString(symbol))
	}
	return fmt.Sprintf("🚨 <b>UNPROTECTED POSITION</b>\n\nSymbol: %s\nTP/SL not attached and the automatic close failed.\nManual intervention required!", html.EscapeString(symbol))
}

func lowBalanceMessage(balance, minimum float64, quote string) string {
	return fmt.Sprintf("⚠️ <b>Low balance</b>\n\nAvailable: %.2f %s\nMinimum: %.2f %s", balance, quote, minimum, quote)
}

func statsMessage(s risk.StatsSnapshot, quote string) string {
	var sb strings.Builder
	sb.WriteString("📊 <b>PnL statistics</b>\n")
	sb.WriteString(strings.Repeat("─", 24) + "\n")
	fmt.Fprintf(&sb, "Trades: %d\n", s.TotalTrades)
	fmt.Fprintf(&sb, "Winning: %d | Losing: %d\n", s.WinningTrades, s.LosingTrades)
	fmt.Fprintf(&sb, "Winrate: %.2f%%\n", s.WinRate())
	fmt.Fprintf(&sb, "Total PnL: %+.2f %s\n", s.TotalPnL, quote)
	fmt.Fprintf(&sb, "Biggest win: +%.2f %s\n", s.BiggestWin, quote)
	fmt.Fprintf(&sb, "Biggest loss: %.2f %s", s.BiggestLoss, quote)
	return sb.String()
}

func startupMessage(universe int, leverage, maxPositions int, notional float64, timeframe string, balance float64, quote string, at time.Time) string {
	var sb strings.Builder
	sb.WriteString("🤖 <b>Scalper started</b>\n\n")
	fmt.Fprintf(&sb, "Balance: %.2f %s\n", balance, quote)
	fmt.Fprintf(&sb, "Symbols: %d\n", universe)
	fmt.Fprintf(&sb, "Timeframe: %s\n", timeframe)
	fmt.Fprintf(&sb, "Order size: %.2f %s x%d\n", notional, quote, leverage)
	fmt.Fprintf(&sb, "Max positions: %d\n\n", maxPositions)
	fmt.Fprintf(&sb, "🕐 %s UTC", at.UTC().Format("02.01.2006 15:04:05"))
	return sb.String()
}
