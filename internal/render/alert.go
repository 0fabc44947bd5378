package render

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
)

var alertStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))

// Console writes alerts to a terminal stream.
type Console struct {
	out io.Writer
	log logrus.FieldLogger
}

// NewConsole creates an alerter writing to out.
func NewConsole(out io.Writer, logger logrus.FieldLogger) *Console {
	return &Console{out: out, log: logger.WithField("component", "console_alerter")}
}

func (c *Console) Alert(_ context.Context, message string) error {
	c.log.WithField("alert", message).Warn("Alert raised")
	_, err := fmt.Fprintln(c.out, alertStyle.Render("! "+message))
	return err
}
