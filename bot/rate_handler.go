package bot

import (
	"context"
	"fmt"
	"strings"

	"lockbank/bot/common"
	"lockbank/models"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const rateHistoryCount = 10

// handleRateCommand handles the /rate command with subcommands
func (b *Bot) handleRateCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		common.RespondWithError(s, i, "Please specify a subcommand: set or history")
		return
	}

	switch options[0].Name {
	case "set":
		b.handleRateSet(s, i, options[0].Options)
	case "history":
		b.handleRateHistory(s, i, options[0].Options)
	default:
		common.RespondWithError(s, i, "Unknown subcommand")
	}
}

func (b *Bot) handleRateSet(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	ctx := context.Background()

	currency, err := models.ParseCurrency(options[0].StringValue())
	if err != nil {
		common.RespondWithError(s, i, "Unknown currency.")
		return
	}
	rate := options[1].IntValue()

	author := fmt.Sprintf("%s (%s)", i.Member.User.Username, i.Member.User.ID)

	row, err := b.adminService.SetRate(ctx, currency, rate, author)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"currency": currency,
			"rate":     rate,
			"author":   author,
		}).Warn("Rate change rejected")
		common.RespondWithError(s, i, friendlyError(err))
		return
	}

	embed := &discordgo.MessageEmbed{
		Title:       "📈 Rate Updated",
		Description: fmt.Sprintf("1 %s = %s, effective %s", strings.ToUpper(string(currency)), common.FormatCurrency(row.Rate, models.CurrencyIDR), common.FormatDiscordTimestamp(row.EffectiveFrom, "f")),
		Color:       common.ColorSuccess,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Set by " + author,
		},
	}

	if err := common.RespondWithEmbed(s, i, embed, false); err != nil {
		log.WithError(err).Error("Error responding to rate set command")
	}
}

func (b *Bot) handleRateHistory(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	ctx := context.Background()

	currency, err := models.ParseCurrency(options[0].StringValue())
	if err != nil {
		common.RespondWithError(s, i, "Unknown currency.")
		return
	}

	rows, err := b.adminService.RateHistory(ctx, currency, rateHistoryCount)
	if err != nil {
		log.WithError(err).Errorf("Error reading rate history for %s", currency)
		common.RespondWithError(s, i, friendlyError(err))
		return
	}

	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("📈 %s Rate History", strings.ToUpper(string(currency))),
		Color: common.ColorInfo,
	}

	if len(rows) == 0 {
		embed.Description = "No rate has been configured yet."
	} else {
		var lines strings.Builder
		for _, row := range rows {
			lines.WriteString(fmt.Sprintf("%s: **%s** per %s, by %s\n",
				common.FormatDiscordTimestamp(row.EffectiveFrom, "f"),
				common.FormatCurrency(row.Rate, models.CurrencyIDR),
				strings.ToUpper(string(currency)),
				row.Author,
			))
		}
		embed.Description = lines.String()
	}

	if err := common.RespondWithEmbed(s, i, embed, true); err != nil {
		log.WithError(err).Error("Error responding to rate history command")
	}
}
