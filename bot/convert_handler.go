package bot

import (
	"context"

	"lockbank/bot/common"
	"lockbank/models"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

func (b *Bot) handleConvert(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	options := i.ApplicationCommandData().Options

	currency, err := models.ParseCurrency(options[0].StringValue())
	if err != nil {
		common.RespondWithError(s, i, "Unknown currency.")
		return
	}
	amount := options[1].IntValue()

	if err := common.DeferResponse(s, i, false); err != nil {
		log.WithError(err).Error("Error deferring convert response")
		return
	}

	account, err := b.accountService.GetOrCreateAccount(ctx, i.Member.User.ID, i.Member.User.Username, models.PlatformGame)
	if err != nil {
		log.WithError(err).Errorf("Error getting account for %s", i.Member.User.ID)
		common.FollowUpWithError(s, i, "Unable to process conversion. Please try again.")
		return
	}

	actor := models.Actor{Kind: models.ActorAccount, ID: i.Member.User.ID}

	// The interaction id doubles as the idempotency key: a retried delivery
	// of the same interaction can never convert twice
	result, err := b.engine.Convert(ctx, account.ID, currency, amount, "discord:"+i.ID, actor)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"accountID": account.ID,
			"currency":  currency,
			"amount":    amount,
		}).Warn("Conversion rejected")
		common.FollowUpWithError(s, i, friendlyError(err))
		return
	}

	displayName := GetDisplayName(s, i.GuildID, i.Member.User.ID)
	embed := buildConversionEmbed(displayName, currency, amount, result)

	if _, err := common.FollowUpWithEmbed(s, i, embed, false); err != nil {
		log.WithError(err).Error("Error responding to convert command")
	}
}
