package bot

import (
	"fmt"
	"strings"

	"lockbank/bot/common"
	"lockbank/models"

	"github.com/bwmarrin/discordgo"
)

// operationLabels maps ledger operation kinds onto user-facing history lines.
var operationLabels = map[models.OperationKind]string{
	models.OperationDeposit:            "Deposit",
	models.OperationWithdraw:           "Withdraw",
	models.OperationTransferIn:         "Transfer received",
	models.OperationTransferOut:        "Transfer sent",
	models.OperationConvertDebit:       "Conversion",
	models.OperationConvertCredit:      "Conversion payout",
	models.OperationConversionReversal: "Conversion reversed",
	models.OperationPurchase:           "Purchase",
	models.OperationRefund:             "Refund",
	models.OperationAdjustment:         "Adjustment",
	models.OperationInitial:            "Account opened",
}

func operationLabel(op models.OperationKind) string {
	if label, ok := operationLabels[op]; ok {
		return label
	}
	return string(op)
}

// buildBalanceEmbed creates the embed for the /balance command
func buildBalanceEmbed(displayName string, balances []*models.BalanceRecord) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("💰 %s's Balance", displayName),
		Color: common.ColorPrimary,
	}

	var totalWL int64
	for _, balance := range balances {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   strings.ToUpper(string(balance.Currency)),
			Value:  common.FormatCurrency(balance.Amount, balance.Currency),
			Inline: true,
		})

		switch balance.Currency {
		case models.CurrencyWL:
			totalWL += balance.Amount
		case models.CurrencyDL:
			totalWL += balance.Amount * models.WLPerDL
		case models.CurrencyBGL:
			totalWL += balance.Amount * models.WLPerDL * models.DLPerBGL
		}
	}

	if totalWL > 0 {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: "Locks total: " + common.FormatLocks(totalWL),
		}
	}

	return embed
}

// buildConversionEmbed creates the embed for a completed /convert
func buildConversionEmbed(displayName string, currency models.Currency, amount int64, result *models.TransactionResult) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "💱 Conversion Complete",
		Description: fmt.Sprintf("%s converted **%s** into **%s**", displayName, common.FormatCurrency(amount, currency), common.FormatCurrency(result.FiatCredited, models.CurrencyIDR)),
		Color:       common.ColorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Rate",
				Value:  fmt.Sprintf("1 %s = %s", strings.ToUpper(string(currency)), common.FormatCurrency(result.RateUsed, models.CurrencyIDR)),
				Inline: true,
			},
			{
				Name:   "Remaining " + strings.ToUpper(string(currency)),
				Value:  common.FormatCurrency(result.NewBalance, currency),
				Inline: true,
			},
			{
				Name:   "IDR Balance",
				Value:  common.FormatCurrency(result.NewFiatBalance, models.CurrencyIDR),
				Inline: true,
			},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Ref " + result.CorrelationID,
		},
	}
}

// buildTransferEmbed creates the embed for a completed /transfer
func buildTransferEmbed(recipientName string, currency models.Currency, amount int64, result *models.TransactionResult) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "📤 Transfer Complete",
		Description: fmt.Sprintf("Sent **%s** to **%s**", common.FormatCurrency(amount, currency), recipientName),
		Color:       common.ColorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Your Balance",
				Value:  common.FormatCurrency(result.NewBalance, currency),
				Inline: true,
			},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Ref " + result.CorrelationID,
		},
	}
}

// buildHistoryEmbed creates the embed for the /history command. Entries are
// expected newest first.
func buildHistoryEmbed(displayName string, entries []*models.LedgerEntry) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("📜 %s's Recent Activity", displayName),
		Color: common.ColorInfo,
	}

	if len(entries) == 0 {
		embed.Description = "No transactions yet."
		return embed
	}

	var lines strings.Builder
	for _, entry := range entries {
		sign := "+"
		if entry.Delta < 0 {
			sign = "−"
		}
		delta := entry.Delta
		if delta < 0 {
			delta = -delta
		}
		lines.WriteString(fmt.Sprintf("%s **%s** %s%s → %s\n",
			common.FormatDiscordTimestamp(entry.CreatedAt, "R"),
			operationLabel(entry.Operation),
			sign,
			common.FormatCurrency(delta, entry.Currency),
			common.FormatCurrency(entry.ResultingBalance, entry.Currency),
		))
	}
	embed.Description = lines.String()

	return embed
}
