package bot

import (
	"context"

	"lockbank/bot/common"
	"lockbank/models"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

func (b *Bot) handleBalance(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	account, err := b.accountService.GetOrCreateAccount(ctx, i.Member.User.ID, i.Member.User.Username, models.PlatformGame)
	if err != nil {
		log.WithError(err).Errorf("Error getting account for %s", i.Member.User.ID)
		common.RespondWithError(s, i, "Unable to retrieve balance. Please try again.")
		return
	}

	balances, err := b.accountService.GetBalances(ctx, account.ID)
	if err != nil {
		log.WithError(err).Errorf("Error getting balances for account %d", account.ID)
		common.RespondWithError(s, i, "Unable to retrieve balance. Please try again.")
		return
	}

	displayName := GetDisplayName(s, i.GuildID, i.Member.User.ID)
	embed := buildBalanceEmbed(displayName, balances)

	if err := common.RespondWithEmbed(s, i, embed, true); err != nil {
		log.WithError(err).Error("Error responding to balance command")
	}
}
