package slack

import (
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/prite36/farm-monitor/internal/models"
)

func header(title string) slack.Block {
	return slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, title, false, false))
}

func section(text string) slack.Block {
	return slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil)
}

// NewInfoMessage builds a titled message with a single text section.
func NewInfoMessage(title, text string) slack.MsgOption {
	return slack.MsgOptionCompose(
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(header(title), section(text)),
	)
}

// NewProblemMessage announces that a plant was flagged with a problem.
func NewProblemMessage(p models.Plant, entry models.EventEntry) slack.MsgOption {
	how := "marked manually"
	if entry.Details["source"] == "import" {
		how = "reported by an import"
	}
	text := fmt.Sprintf(":warning: *%s / %s* (plant %s) was %s at %s.",
		p.Field, p.Species, p.ID, how, entry.Timestamp.Format("2006-01-02 15:04"))
	return slack.MsgOptionCompose(
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(header("Plant problem"), section(text)),
	)
}

// NewSummaryMessage renders the dashboard counters.
func NewSummaryMessage(s models.Summary) slack.MsgOption {
	text := FormatSummary(s)
	return slack.MsgOptionCompose(
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(header("Farm status"), section(text)),
	)
}

// NewDigestMessage reports an automatic watering run and lists plants that still need attention.
func NewDigestMessage(watered int, s models.Summary, attention []models.PlantView) slack.MsgOption {
	var b strings.Builder
	fmt.Fprintf(&b, "Automatic watering run finished: *%d* plant(s) watered.\n", watered)
	b.WriteString(FormatSummary(s))
	for _, v := range attention {
		switch {
		case v.Health == models.HealthProblem:
			fmt.Fprintf(&b, "\n• %s / %s: problem reported", v.Field, v.Species)
		case v.Critical:
			fmt.Fprintf(&b, "\n• %s / %s: critically overdue (%d days)", v.Field, v.Species, v.OverdueDays)
		}
	}
	text := b.String()
	return slack.MsgOptionCompose(
		slack.MsgOptionText(text, false),
		slack.MsgOptionBlocks(header("Watering digest"), section(text)),
	)
}

func FormatSummary(s models.Summary) string {
	return fmt.Sprintf("Total: *%d*  OK: *%d*  Overdue: *%d*  Problem: *%d*  Critical: *%d*",
		s.Total, s.OK, s.Overdue, s.Problem, s.Critical)
}
