package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/teslashibe/llamadoc-voice/pkg/history"
	"github.com/teslashibe/llamadoc-voice/pkg/llamadoc"
	"github.com/teslashibe/llamadoc-voice/pkg/notify"
	"github.com/teslashibe/llamadoc-voice/pkg/settings"
)

// console renders the assistant's surfaces as terminal lines.
type console struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsole(out io.Writer) *console {
	return &console{out: out}
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) Show(message string, sev notify.Severity) {
	marker := "·"
	switch sev {
	case notify.Success:
		marker = "✓"
	case notify.Error:
		marker = "✗"
	}
	c.printf("%s %s\n", marker, message)
}

func (c *console) Hide() {}

func (c *console) ShowPending(question string) {
	c.printf("\nQ: %s\n", question)
}

func (c *console) ShowAnswer(turn history.Turn, sources []llamadoc.Source) {
	c.printf("\nA: %s\n", strings.TrimSpace(turn.Answer))
	for i, s := range sources {
		page := ""
		if p := s.Page(); p >= 0 {
			page = fmt.Sprintf(" (page %d)", p)
		}
		c.printf("  [%d]%s %s\n", i+1, page, history.Truncate(strings.Join(strings.Fields(s.PageContent), " "), 120))
	}
	c.printf("\n")
}

func (c *console) ShowAnswerError(message string) {
	c.printf("\nA: (error) %s\n\n", message)
}

func (c *console) SetRecording(on bool) {}

func (c *console) SetMuted(muted bool) {}

func (c *console) SetSettings(s settings.VoiceSettings) {}

func (c *console) ShowHistoryLoading() {}

func (c *console) ShowHistoryEmpty(message string) {
	c.printf("%s\n", message)
}

func (c *console) ShowHistoryError(message string) {
	c.printf("%s\n", message)
}

func (c *console) ShowHistory(items []history.Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tQUESTION\tSUMMARY\tAUDIO")
	for _, it := range items {
		audio := ""
		if it.HasQuestionAudio {
			audio += "Q"
		}
		if it.HasAnswerAudio {
			audio += "A"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.When, it.QuestionPreview, it.SummaryPreview, audio)
	}
	tw.Flush()
}

var _ surfaces = (*console)(nil)
