package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// Run blocks until the operator quits or ctx is cancelled.
func Run(ctx context.Context, actions Actions, screen Screen, n *Notifier) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(NewModel(actions, screen), tea.WithAltScreen(), tea.WithContext(ctx))
	if n != nil {
		go n.Pump(ctx, program.Send)
	}

	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
