// Package volslack exposes the surface pipeline over Slack slash
// commands via a socket-mode connection.
package volslack

import (
	"fmt"
	"log"
	"os"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

type SlackBot struct {
	client       *slack.Client
	socketClient *socketmode.Client
	eventHandler *Handler
}

// NewSlackBot wires a socket-mode client from the app and bot tokens.
// VOLSURF_DEBUG turns on socketmode's verbose logging, same switch as
// the CLI's CPU monitor.
func NewSlackBot(appToken, botToken string) *SlackBot {
	client := slack.New(
		botToken,
		slack.OptionAppLevelToken(appToken),
	)

	socketClient := socketmode.New(
		client,
		socketmode.OptionDebug(os.Getenv("VOLSURF_DEBUG") != ""),
		socketmode.OptionLog(log.New(log.Writer(), "volslack: ", log.Lshortfile|log.LstdFlags)),
	)

	return &SlackBot{
		client:       client,
		socketClient: socketClient,
		eventHandler: NewHandler(),
	}
}

// Start dispatches incoming events until the socket connection ends.
func (sb *SlackBot) Start() error {
	go sb.dispatch()
	return sb.socketClient.Run()
}

func (sb *SlackBot) dispatch() {
	for evt := range sb.socketClient.Events {
		if evt.Type != socketmode.EventTypeSlashCommand {
			continue
		}
		if err := sb.eventHandler.Handle(&evt, sb.socketClient); err != nil {
			fmt.Printf("Error handling slash command: %s\n", err)
		}
	}
}
