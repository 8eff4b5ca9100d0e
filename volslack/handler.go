package volslack

import (
	"fmt"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

// Handler routes slash commands to their command handlers. Every
// recognized event is acked, even when the handler fails, so Slack
// does not retry the command.
type Handler struct {
	helpHandler    *HelpHandler
	surfaceHandler *SurfaceHandler
}

func NewHandler() *Handler {
	return &Handler{
		helpHandler:    NewHelpHandler(),
		surfaceHandler: NewSurfaceHandler(),
	}
}

func (h *Handler) Handle(evt *socketmode.Event, client *socketmode.Client) error {
	data, ok := evt.Data.(slack.SlashCommand)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", evt.Data)
	}
	defer client.Ack(*evt.Request)

	switch data.Command {
	case "/help":
		return h.helpHandler.HandleCommand(evt, client)
	case "/volsurf":
		return h.surfaceHandler.HandleCommand(evt, client)
	}
	return nil
}
