package bot

import (
	"context"

	"lockbank/bot/common"
	"lockbank/models"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

func (b *Bot) handleTransfer(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	options := i.ApplicationCommandData().Options

	recipientUser := options[0].UserValue(s)
	currency, err := models.ParseCurrency(options[1].StringValue())
	if err != nil {
		common.RespondWithError(s, i, "Unknown currency.")
		return
	}
	amount := options[2].IntValue()

	if recipientUser.Bot {
		common.RespondWithError(s, i, "You can't send locks to a bot.")
		return
	}
	if recipientUser.ID == i.Member.User.ID {
		common.RespondWithError(s, i, "You can't send locks to yourself.")
		return
	}

	if err := common.DeferResponse(s, i, false); err != nil {
		log.WithError(err).Error("Error deferring transfer response")
		return
	}

	sender, err := b.accountService.GetOrCreateAccount(ctx, i.Member.User.ID, i.Member.User.Username, models.PlatformGame)
	if err != nil {
		log.WithError(err).Errorf("Error getting sender account for %s", i.Member.User.ID)
		common.FollowUpWithError(s, i, "Unable to process transfer. Please try again.")
		return
	}

	recipient, err := b.accountService.GetOrCreateAccount(ctx, recipientUser.ID, recipientUser.Username, models.PlatformGame)
	if err != nil {
		log.WithError(err).Errorf("Error getting recipient account for %s", recipientUser.ID)
		common.FollowUpWithError(s, i, "Unable to process transfer. Please try again.")
		return
	}

	actor := models.Actor{Kind: models.ActorAccount, ID: i.Member.User.ID}

	result, err := b.engine.Transfer(ctx, sender.ID, recipient.ID, currency, amount, "discord:"+i.ID, actor)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"from":     sender.ID,
			"to":       recipient.ID,
			"currency": currency,
			"amount":   amount,
		}).Warn("Transfer rejected")
		common.FollowUpWithError(s, i, friendlyError(err))
		return
	}

	recipientName := GetDisplayName(s, i.GuildID, recipientUser.ID)
	embed := buildTransferEmbed(recipientName, currency, amount, result)

	if _, err := common.FollowUpWithEmbed(s, i, embed, false); err != nil {
		log.WithError(err).Error("Error responding to transfer command")
	}
}
