package service

import (
	"fmt"
	"sort"
	"strings"

	"auto_trading_bot/internal/models"

	"github.com/shopspring/decimal"
)

func statusEmoji(s models.BotStatus) string {
	switch s {
	case models.BotActive:
		return "▶️"
	case models.BotOnHold:
		return "⏸"
	default:
		return "⏹"
	}
}

func signalEmoji(s models.Signal) string {
	switch s {
	case models.SignalBuy:
		return "🟢"
	case models.SignalSell:
		return "🔴"
	case models.SignalHold:
		return "⚪️"
	case models.SignalBacktest:
		return "🧪"
	default:
		return "❔"
	}
}

// FormatAnalysis renders a run as a plain-text chat message.
func FormatAnalysis(res models.AnalysisResult) string {
	var b strings.Builder
	if !res.Success {
		b.WriteString("⚠️ ")
	}
	b.WriteString(res.SummaryText)

	for _, a := range res.Analyses {
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "%s %s: %s", signalEmoji(a.Signal), a.AssetID, a.Signal)
		if a.Signal != models.SignalBacktest && a.CurrentPrice > 0 {
			fmt.Fprintf(&b, " @ %s (SMA %s / %s)", f2(a.CurrentPrice), f2(a.ShortMA), f2(a.LongMA))
		}
		if a.StatusText != "" {
			b.WriteString("\n  " + a.StatusText)
		}
		if o := a.Outcome; o != nil {
			mark := "✅"
			if !o.Success {
				mark = "❌"
			}
			fmt.Fprintf(&b, "\n  %s %s", mark, o.Message)
		}
	}
	return b.String()
}

func FormatBacktest(res models.BacktestResult) string {
	if !res.Success {
		return fmt.Sprintf("❌ Backtest %s: %s", res.AssetID, res.SummaryText)
	}
	return fmt.Sprintf(
		"🧪 Backtest %s\n"+
			"Period: %s .. %s\n"+
			"Balance: $%s -> $%s\n"+
			"Return: $%s (%.2f%%)\n"+
			"Trades: %d\n\n"+
			"%s",
		res.AssetID,
		res.StartTime.Format("2006-01-02"), res.EndTime.Format("2006-01-02"),
		res.InitialBalance.StringFixed(2), res.FinalBalance.StringFixed(2),
		res.TotalReturn.StringFixed(2), res.TotalReturnPct,
		res.TotalTrades,
		res.SummaryText,
	)
}

// FormatAccount lists cash and holdings. Holdings with a known price are marked
// to market and added to the portfolio total.
func FormatAccount(acc models.Account, prices map[string]float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💰 Balance: $%s", acc.Balance.StringFixed(2))
	if len(acc.Holdings) == 0 {
		b.WriteString("\n📭 No holdings")
		return b.String()
	}

	ids := make([]string, 0, len(acc.Holdings))
	for id := range acc.Holdings {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	total := acc.Balance
	valued := true
	for _, id := range ids {
		qty := acc.Holdings[id]
		px, ok := prices[id]
		if !ok || px <= 0 {
			valued = false
			fmt.Fprintf(&b, "\n- %s: %s (no price)", id, qty.StringFixed(8))
			continue
		}
		value := qty.Mul(decimal.NewFromFloat(px))
		total = total.Add(value)
		fmt.Fprintf(&b, "\n- %s: %s x $%s = $%s", id, qty.StringFixed(8), f2(px), value.StringFixed(2))
	}

	if valued {
		fmt.Fprintf(&b, "\n📈 Portfolio: $%s", total.StringFixed(2))
	} else {
		fmt.Fprintf(&b, "\n📈 Portfolio: at least $%s", total.StringFixed(2))
	}
	return b.String()
}

// FormatPrices keeps the order of ids.
func FormatPrices(ids []string, prices map[string]float64) string {
	var b strings.Builder
	b.WriteString("💹 Prices")
	for _, id := range ids {
		if px, ok := prices[id]; ok {
			fmt.Fprintf(&b, "\n- %s: $%s", id, f2(px))
		} else {
			fmt.Fprintf(&b, "\n- %s: n/a", id)
		}
	}
	return b.String()
}

func FormatTrades(hist []models.TradeRecord) string {
	if len(hist) == 0 {
		return "📭 No trades yet"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🧾 Last %d trades", len(hist))
	for _, r := range hist {
		fmt.Fprintf(&b, "\n%s %s %s %s @ $%s",
			r.Timestamp.UTC().Format("2006-01-02 15:04"), r.Action, r.AssetID,
			r.Quantity.StringFixed(8), r.Price.StringFixed(2))
		if r.ProfitLoss != nil {
			fmt.Fprintf(&b, " (P&L: $%s)", r.ProfitLoss.StringFixed(2))
		}
	}
	return b.String()
}
