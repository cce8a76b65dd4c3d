package bot

import (
	"context"

	"lockbank/bot/common"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const defaultHistoryCount = 10
const maxHistoryCount = 25

func (b *Bot) handleHistory(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	count := defaultHistoryCount
	if options := i.ApplicationCommandData().Options; len(options) > 0 {
		count = int(options[0].IntValue())
		if count < 1 {
			count = defaultHistoryCount
		}
		if count > maxHistoryCount {
			count = maxHistoryCount
		}
	}

	account, err := b.accountService.GetAccount(ctx, i.Member.User.ID)
	if err != nil {
		common.RespondWithError(s, i, "You don't have any transactions yet.")
		return
	}

	entries, err := b.engine.ReadRecentActivity(ctx, account.ID, count)
	if err != nil {
		log.WithError(err).Errorf("Error reading recent activity for account %d", account.ID)
		common.RespondWithError(s, i, "Unable to load history. Please try again.")
		return
	}

	displayName := GetDisplayName(s, i.GuildID, i.Member.User.ID)
	embed := buildHistoryEmbed(displayName, entries)

	if err := common.RespondWithEmbed(s, i, embed, true); err != nil {
		log.WithError(err).Error("Error responding to history command")
	}
}
