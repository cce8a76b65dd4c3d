package bot

import (
	"context"
	"fmt"

	"lockbank/events"
	"lockbank/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Config holds bot configuration
type Config struct {
	Token   string
	GuildID string
}

type Bot struct {
	config         Config
	session        *discordgo.Session
	accountService service.AccountService
	engine         service.TransactionEngine
	adminService   service.AdminService
	eventBus       *events.Bus
}

func New(config Config, accountService service.AccountService, engine service.TransactionEngine, adminService service.AdminService, eventBus *events.Bus) (*Bot, error) {
	dg, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	bot := &Bot{
		config:         config,
		session:        dg,
		accountService: accountService,
		engine:         engine,
		adminService:   adminService,
		eventBus:       eventBus,
	}

	dg.AddHandler(bot.handleCommands)

	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}

	if err := bot.registerCommands(); err != nil {
		dg.Close()
		return nil, fmt.Errorf("error registering commands: %w", err)
	}

	// Surface failed compensations to operators; the ledger needs manual
	// reconciliation when one fires
	eventBus.Subscribe(events.EventTypeCompensationFailed, func(ctx context.Context, event events.Event) {
		if failed, ok := event.(events.CompensationFailedEvent); ok {
			log.WithFields(log.Fields{
				"accountID":     failed.AccountID,
				"correlationID": failed.CorrelationID,
				"detail":        failed.Detail,
				"alert":         "manual_reconciliation",
			}).Error("Compensation failed; ledger needs manual reconciliation")
		}
	})

	return bot, nil
}

func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) handleCommands(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	switch i.ApplicationCommandData().Name {
	case "balance":
		b.handleBalance(s, i)
	case "convert":
		b.handleConvert(s, i)
	case "transfer":
		b.handleTransfer(s, i)
	case "history":
		b.handleHistory(s, i)
	case "rate":
		b.handleRateCommand(s, i)
	}
}
