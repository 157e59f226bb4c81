package telegram

import (
	"fmt"
	"strings"
	"time"

	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/pkg/utils"
)

const maxMessageLen = 4090

// FormatUnderpricedMessage formats an underpriced listing into a Markdown string for Telegram.
func FormatUnderpricedMessage(a dto.Analysis) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("🃏 *Underpriced: %s*\n", escapeMarkdown(utils.Truncate(a.Title, 80))))
	sb.WriteString(fmt.Sprintf("🆔 Listing `%d` | Opportunity `%d`\n\n", a.ListingID, a.OpportunityID))

	sb.WriteString("💰 *Pricing:*\n")
	sb.WriteString(fmt.Sprintf("• 🏷 List Price: %.2f\n", a.ListPrice))
	sb.WriteString(fmt.Sprintf("• 📈 Expected Sale: %.2f (%.2f - %.2f)\n",
		a.Valuation.ExpectedSalePrice, a.Valuation.CILow, a.Valuation.CIHigh))
	sb.WriteString(fmt.Sprintf("• 🛒 Buy Limit: %.2f\n", a.Valuation.BuyLimit))
	sb.WriteString(fmt.Sprintf("• 🎯 Suggested List: %.2f\n\n", a.Valuation.SuggestedListPrice))

	sb.WriteString("📊 *Score:*\n")
	sb.WriteString(fmt.Sprintf("• Net Profit: %.2f\n", a.Profit.NetProfit))
	sb.WriteString(fmt.Sprintf("• ROI: %.1f%%\n", a.Profit.ROI*100))
	sb.WriteString(fmt.Sprintf("• Score: %.1f/100\n", a.Profit.Score))
	sb.WriteString(fmt.Sprintf("• Confidence: %.0f%% (%d comps)\n\n",
		a.Valuation.ModelConfidence*100, a.Valuation.ComparablesCount))

	riskIcon := "🟢"
	switch a.Risk.Level {
	case dto.RiskLevelMedium:
		riskIcon = "🟡"
	case dto.RiskLevelHigh:
		riskIcon = "🔴"
	}
	sb.WriteString(fmt.Sprintf("%s *Risk:* %s (%.0f)\n", riskIcon, a.Risk.Level, a.Risk.Score))
	for _, reason := range a.Risk.Reasons {
		sb.WriteString(fmt.Sprintf("  - %s\n", escapeMarkdown(reason)))
	}

	return utils.Truncate(sb.String(), maxMessageLen)
}

// FormatErrorAlertMessage formats an operational error for Telegram.
func FormatErrorAlertMessage(at time.Time, errType string, errMsg string, data string) string {
	return fmt.Sprintf(`📛 [ERROR ALERT]
%s
🔧 %s
⚠️ %s

📄 Data: %s
`, utils.PrettyDate(at), errType, errMsg, data)
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
