package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

func currencyChoices() []*discordgo.ApplicationCommandOptionChoice {
	return []*discordgo.ApplicationCommandOptionChoice{
		{Name: "World Lock (WL)", Value: "wl"},
		{Name: "Diamond Lock (DL)", Value: "dl"},
		{Name: "Blue Gem Lock (BGL)", Value: "bgl"},
	}
}

// registerCommands registers all slash commands with Discord
func (b *Bot) registerCommands() error {
	adminOnly := int64(discordgo.PermissionAdministrator)

	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "balance",
			Description: "Check your lock and rupiah balances",
		},
		{
			Name:        "convert",
			Description: "Convert locks to rupiah at the current rate",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "currency",
					Description: "Lock type to convert",
					Required:    true,
					Choices:     currencyChoices(),
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "amount",
					Description: "How many locks to convert",
					Required:    true,
				},
			},
		},
		{
			Name:        "transfer",
			Description: "Send locks to another player",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Player to send to",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "currency",
					Description: "Lock type to send",
					Required:    true,
					Choices:     currencyChoices(),
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "amount",
					Description: "How many locks to send",
					Required:    true,
				},
			},
		},
		{
			Name:        "history",
			Description: "Show your recent transactions",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "count",
					Description: "How many entries to show (default 10)",
					Required:    false,
				},
			},
		},
		{
			Name:                     "rate",
			Description:              "Manage conversion rates (admin only)",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "set",
					Description: "Set a new conversion rate, effective immediately",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "currency",
							Description: "Lock type",
							Required:    true,
							Choices:     currencyChoices(),
						},
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "rate",
							Description: "Rupiah per lock",
							Required:    true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "history",
					Description: "Show recent rate changes",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "currency",
							Description: "Lock type",
							Required:    true,
							Choices:     currencyChoices(),
						},
					},
				},
			},
		},
	}

	for _, cmd := range commands {
		_, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, b.config.GuildID, cmd)
		if err != nil {
			return fmt.Errorf("cannot create '%s' command: %w", cmd.Name, err)
		}
	}

	return nil
}
