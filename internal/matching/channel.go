package matching

import (
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChannelProvider renders the chat transport for a channel. The engine only
// allocates channel ids; the provider owns the chat itself.
type ChannelProvider interface {
	Embed(ctx context.Context, channelID, nickname string) (string, error)
}

var widgetTemplate = template.Must(template.New("widget").Parse(
	`<iframe class="daily-match-chat" src="{{.URL}}" title="{{.Title}}" width="100%" height="480" frameborder="0" allow="clipboard-write"></iframe>`,
))

// WidgetProvider renders an iframe pointing at a hosted chat widget.
type WidgetProvider struct {
	BaseURL string
}

func (p WidgetProvider) Embed(_ context.Context, channelID, nickname string) (string, error) {
	u, err := url.Parse(p.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid widget base url: %w", err)
	}
	q := u.Query()
	q.Set("channel", channelID)
	q.Set("nick", nickname)
	u.RawQuery = q.Encode()

	var b strings.Builder
	err = widgetTemplate.Execute(&b, struct {
		URL   string
		Title string
	}{URL: u.String(), Title: "Chat with your daily match"})
	if err != nil {
		return "", fmt.Errorf("failed to render widget: %w", err)
	}
	return b.String(), nil
}

// NewChannelID builds prefix + base36 unix millis + random hex, cut to maxLen.
func NewChannelID(prefix string, maxLen int, now time.Time) string {
	id := prefix + strconv.FormatInt(now.UnixMilli(), 36) + strings.ReplaceAll(uuid.NewString(), "-", "")
	if len(id) > maxLen {
		id = id[:maxLen]
	}
	return id
}
