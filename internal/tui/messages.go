package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hpungsan/chatbox/internal/artifact"
	"github.com/hpungsan/chatbox/internal/config"
	"github.com/hpungsan/chatbox/internal/errors"
	"github.com/hpungsan/chatbox/internal/session"
)

// Message types
type (
	// StateMsg carries a session snapshot pushed by the controller.
	StateMsg session.State

	// SubmittedMsg is sent when a submit command returns.
	SubmittedMsg struct {
		Accepted bool
	}

	// SavedMsg reports the outcome of saving every available artifact.
	SavedMsg struct {
		Outputs []*artifact.SaveOutput
		Err     error
	}
)

// Commands. Every controller call runs in a command so that the controller's
// observer, which blocks on Program.Send, never runs on the event loop.

// submitCmd runs a generation to completion.
func submitCmd(ctx context.Context, ctrl *session.Controller, text string) tea.Cmd {
	return func() tea.Msg {
		return SubmittedMsg{Accepted: ctrl.Submit(ctx, text)}
	}
}

// selectTabCmd switches the active output panel.
func selectTabCmd(ctrl *session.Controller, tab session.Tab) tea.Cmd {
	return func() tea.Msg {
		// Tabs come from session.Tabs, so this cannot fail.
		_ = ctrl.SelectTab(tab)
		return nil
	}
}

// saveCmd writes every artifact of the current project to the exports directory.
// It stops at the first failure; outputs saved before it are still reported.
func saveCmd(ctx context.Context, ctrl *session.Controller, cfg *config.Config) tea.Cmd {
	return func() tea.Msg {
		var msg SavedMsg
		for _, kind := range artifact.Kinds {
			a, err := ctrl.Export(kind)
			if err != nil {
				msg.Err = err
				return msg
			}
			if a == nil {
				msg.Err = errors.NewNoProject()
				return msg
			}
			out, err := artifact.Save(ctx, cfg, a, "")
			if err != nil {
				msg.Err = fmt.Errorf("save %s: %w", kind, err)
				return msg
			}
			msg.Outputs = append(msg.Outputs, out)
		}
		return msg
	}
}
