package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/twitch-bot-cli/internal/application"
	"github.com/bnema/twitch-bot-cli/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type RenderOptions struct {
	Now time.Time
	// ExpiryWarning marks tokens expiring within this window.
	ExpiryWarning time.Duration
}

func renderView(statuses []application.Status, o overview, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Twitch Bot Channels"),
		s.header.Render(headerLine(o)),
	}

	if o.total == 0 {
		lines = append(lines, s.empty.Render("No channels tracked. Run `tb channel add` to onboard one."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}
	if o.enabled == 0 {
		lines = append(lines, s.empty.Render("All channels are disabled. Run `tb channel enable <channel>` to resume one."))
	}

	for _, status := range statuses {
		lines = append(lines, s.section.Render(renderChannel(status, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func headerLine(o overview) string {
	line := fmt.Sprintf("channels: %d", o.total)
	if o.total == 0 {
		return line
	}
	line += fmt.Sprintf(" (%d enabled, %d live)", o.enabled, o.live)
	if o.orphaned > 0 {
		line += fmt.Sprintf(", %d without credential", o.orphaned)
	}
	return line
}

func renderChannel(status application.Status, opts RenderOptions, s styles) string {
	title := s.channel.Render(channelTitle(status.Channel))
	state := s.ok.Render("[enabled]")
	if !status.Channel.Enabled {
		title = s.disabled.Render(channelTitle(status.Channel))
		state = s.disabled.Render("[disabled]")
	}
	if status.Live {
		state += " " + s.warning.Render("[live]")
	}

	parts := []string{
		lipgloss.JoinHorizontal(lipgloss.Top, title, " ", state),
		scopeLine(status, s),
		tokenLine(status, opts, s),
		s.detail.Render(fmt.Sprintf("subscriptions: %d", len(status.Channel.SubscriptionIDs))),
		chattersLine(status, s),
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func channelTitle(channel domain.Channel) string {
	login := strings.TrimSpace(channel.Login)
	if login == "" {
		return string(channel.ID)
	}
	return fmt.Sprintf("%s (%s)", login, channel.ID)
}

func scopeLine(status application.Status, s styles) string {
	label := s.key.Render("scopes:")
	if status.CredentialMissing {
		return lipgloss.JoinHorizontal(lipgloss.Top, label, " ", s.warning.Render("no credential stored"))
	}

	total := len(domain.ChannelScopes)
	granted := status.ScopesGranted()
	bar := renderProgressBar(percentOf(granted, total), 12, s)
	meta := s.meta.Render(fmt.Sprintf("%d/%d", granted, total))

	line := lipgloss.JoinHorizontal(lipgloss.Top, label, " ", bar, " ", meta)
	if len(status.MissingScopes) > 0 {
		line += " " + s.warning.Render("missing: "+strings.Join(domain.ScopeStrings(status.MissingScopes), ", "))
	}

	return line
}

func tokenLine(status application.Status, opts RenderOptions, s styles) string {
	label := s.key.Render("token:")
	if status.CredentialMissing || status.ExpiresAt.IsZero() {
		return lipgloss.JoinHorizontal(lipgloss.Top, label, " ", s.meta.Render("n/a"))
	}

	expiryStyle := lipgloss.NewStyle().Foreground(expiryColor(status.ExpiresAt, opts.Now))
	line := lipgloss.JoinHorizontal(
		lipgloss.Top,
		label,
		" ",
		expiryStyle.Render(formatExpiryRelative(status.ExpiresAt, opts.Now)),
	)

	if opts.Now.IsZero() {
		return line
	}
	if !status.ExpiresAt.After(opts.Now) {
		return line + " " + s.warning.Render("[expired, refreshed on next use]")
	}
	if opts.ExpiryWarning > 0 && status.ExpiresAt.Sub(opts.Now) <= opts.ExpiryWarning {
		line += " " + s.warning.Render("[expiring]")
	}

	return line
}

func chattersLine(status application.Status, s styles) string {
	label := s.key.Render("watchtime:")
	if status.ChatterCount == 0 {
		return lipgloss.JoinHorizontal(lipgloss.Top, label, " ", s.meta.Render("no chatters recorded"))
	}

	top := make([]string, 0, len(status.TopChatters))
	for _, chatter := range status.TopChatters {
		name := chatter.UserID
		if login, ok := status.ChatterLogins[chatter.UserID]; ok && login != "" {
			name = login
		}
		top = append(top, fmt.Sprintf("%s %s", name, formatMinutes(chatter.Minutes)))
	}

	summary := fmt.Sprintf("%d chatters", status.ChatterCount)
	if len(top) > 0 {
		summary += ", top: " + strings.Join(top, ", ")
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, label, " ", s.detail.Render(summary))
}

func formatMinutes(minutes int64) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh%02dm", minutes/60, minutes%60)
}

func percentOf(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}

func renderProgressBar(filledPercent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	fraction := clampPercent(filledPercent) / 100.0
	filled := int(math.Round(float64(width) * fraction))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	empty := width - filled
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", empty)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func formatExpiryAt(expiresAt, now time.Time) string {
	if now.IsZero() {
		return expiresAt.Format(time.RFC3339)
	}

	yearA, monthA, dayA := now.Date()
	yearB, monthB, dayB := expiresAt.Date()
	if yearA == yearB && monthA == monthB && dayA == dayB {
		return expiresAt.Format("15:04")
	}

	return expiresAt.Format("15:04 on 02 Jan")
}

func formatExpiryRelative(expiresAt, now time.Time) string {
	if now.IsZero() {
		return "expires " + formatExpiryAt(expiresAt, now)
	}

	if !expiresAt.After(now) {
		return "expired " + formatExpiryAt(expiresAt, now)
	}

	remaining := expiresAt.Sub(now)
	if remaining < time.Hour {
		minutes := int(math.Ceil(remaining.Minutes()))
		return fmt.Sprintf("expires in %d min (%s)", minutes, formatExpiryAt(expiresAt, now))
	}

	hours := int(math.Ceil(remaining.Hours()))
	suffix := "hours"
	if hours == 1 {
		suffix = "hour"
	}
	return fmt.Sprintf("expires in %d %s (%s)", hours, suffix, formatExpiryAt(expiresAt, now))
}

func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	// ANSI 256 greyscale ramp, 240 faded to 255 bright.
	baseColor := 240.0
	targetColor := 255.0
	colorCode := int(baseColor + (targetColor-baseColor)*normalized)

	return lipgloss.Color(fmt.Sprintf("%d", colorCode))
}

// expiryColor brightens as a user access token (about four hours) runs out.
func expiryColor(expiresAt, now time.Time) lipgloss.Color {
	if now.IsZero() || !expiresAt.After(now) {
		return lipgloss.Color("255")
	}

	window := 4 * time.Hour
	inverted := window.Seconds() - expiresAt.Sub(now).Seconds()
	return interpolateColor(inverted, 0, window.Seconds())
}
