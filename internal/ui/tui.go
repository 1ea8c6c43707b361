// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and forwards playback errors
package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Run blocks until the user quits or ctx is cancelled
func Run(ctx context.Context, player Player, title string, errs <-chan error) error {
	p := tea.NewProgram(NewModel(ctx, player, title), tea.WithAltScreen())

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-ctx.Done():
				p.Quit()
				return
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				p.Send(ErrorMsg{Err: err})
			case <-done:
				return
			}
		}
	}()

	_, err := p.Run()
	return err
}
