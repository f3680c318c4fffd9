package status

import (
	"errors"
	"io"

	"github.com/bnema/twitch-bot-cli/internal/application"
	tea "github.com/charmbracelet/bubbletea"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

type channelsLoadedMsg struct{}

// overview counts what the header line reports about the channel list.
type overview struct {
	total    int
	enabled  int
	live     int
	orphaned int
}

func summarize(statuses []application.Status) overview {
	o := overview{total: len(statuses)}
	for _, status := range statuses {
		if status.Channel.Enabled {
			o.enabled++
		}
		if status.Live {
			o.live++
		}
		if status.CredentialMissing {
			o.orphaned++
		}
	}
	return o
}

type channelsModel struct {
	channels []application.Status
	overview overview
	opts     RenderOptions
	styles   styles
	frame    string
}

func newChannelsModel(statuses []application.Status, opts RenderOptions) channelsModel {
	return channelsModel{
		channels: statuses,
		overview: summarize(statuses),
		opts:     opts,
		styles:   newStyles(),
	}
}

func (m channelsModel) Init() tea.Cmd {
	return func() tea.Msg {
		return channelsLoadedMsg{}
	}
}

func (m channelsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if _, ok := msg.(channelsLoadedMsg); ok {
		m.frame = renderView(m.channels, m.overview, m.opts, m.styles)
		return m, tea.Quit
	}
	return m, nil
}

func (m channelsModel) View() string {
	return m.frame
}

// Render draws the channel overview in a headless bubbletea program and
// returns the final frame.
func Render(statuses []application.Status, opts RenderOptions) (string, error) {
	p := tea.NewProgram(
		newChannelsModel(statuses, opts),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)

	final, err := p.Run()
	if err != nil {
		return "", err
	}

	rendered, ok := final.(channelsModel)
	if !ok {
		return "", ErrUnexpectedRenderModel
	}

	return rendered.View(), nil
}
