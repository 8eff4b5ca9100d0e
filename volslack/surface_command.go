package volslack

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"github.com/volquant/volsurf/pipeline"
	"github.com/volquant/volsurf/surface"
)

type SurfaceHandler struct{}

func NewSurfaceHandler() *SurfaceHandler {
	return &SurfaceHandler{}
}

func (h *SurfaceHandler) HandleCommand(evt *socketmode.Event, client *socketmode.Client) error {
	data := evt.Data.(slack.SlashCommand)
	args := strings.Fields(data.Text)

	if len(args) != 2 {
		_, _, err := client.PostMessage(data.ChannelID,
			slack.MsgOptionText("Invalid number of arguments. Usage: /volsurf <currency> <method>", false))
		return err
	}

	currency := strings.ToUpper(args[0])
	method, err := surface.ParseMethod(args[1])
	if err != nil {
		_, _, err := client.PostMessage(data.ChannelID,
			slack.MsgOptionText(fmt.Sprintf("Unknown method %q. Use grid, rbf or svi.", args[1]), false))
		return err
	}

	// Send initial message
	_, ts, err := client.PostMessage(data.ChannelID,
		slack.MsgOptionText(fmt.Sprintf("Building %s volatility surface (%s)...", currency, method), false))
	if err != nil {
		return err
	}

	go runBuildAndPost(client, data.ChannelID, ts, currency, method)

	return nil
}

func runBuildAndPost(client *socketmode.Client, channelID, timestamp, currency string, method surface.Method) {
	result, err := pipeline.Build(pipeline.BuildConfig{
		Currency: currency,
		Method:   method,
		GridSize: surface.DefaultGridSize,
	})

	var text string
	if err != nil {
		text = fmt.Sprintf("Surface build failed: %s", err)
	} else {
		text = formatSnapshot(result)
	}

	client.PostMessage(channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionTS(timestamp))
}

func formatSnapshot(result *pipeline.BuildResult) string {
	snap := result.Snapshot

	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s volatility surface* (%s)\n", snap.Currency, snap.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "Underlying: $%.2f\n", snap.UnderlyingPrice)
	if snap.DVOL != nil {
		fmt.Fprintf(&sb, "DVOL: %.2f%%\n", *snap.DVOL)
	}
	fmt.Fprintf(&sb, "Quotes: %d calls / %d puts, %d parity violations\n",
		len(result.Calls), len(result.Puts), len(result.Violations))

	keys := make([]string, 0, len(snap.Metrics))
	for k := range snap.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := snap.Metrics[k]
		if math.IsNaN(v) {
			fmt.Fprintf(&sb, "%s: n/a\n", k)
			continue
		}
		fmt.Fprintf(&sb, "%s: %.4f\n", k, v)
	}
	return sb.String()
}
