package ui

import (
	"fmt"
	"os"

	tea "charm.land/bubbletea/v2"
	"golang.org/x/term"
)

// Run starts the interactive browser and blocks until the user quits or
// the context in opts is canceled. Width and height of 0 auto-detect the
// terminal size. Extra ProgramOptions (custom IO) mirror tea.NewProgram.
func Run(opts Options, width, height int, progOpts ...tea.ProgramOption) error {
	m := NewModel(opts)
	if width > 0 || height > 0 {
		if width <= 0 || height <= 0 {
			if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
				width, height = orSize(width, w), orSize(height, h)
			}
		}
		width, height = orSize(width, 80), orSize(height, 24)
		m.width, m.height = width, height
		progOpts = append(progOpts, tea.WithWindowSize(width, height))
	}
	progOpts = append([]tea.ProgramOption{tea.WithContext(m.ctx)}, progOpts...)

	prog := tea.NewProgram(m, progOpts...)
	final, err := prog.Run()
	if fm, ok := final.(*Model); ok && fm.w != nil {
		fm.w.Detach()
	}
	if err != nil {
		return fmt.Errorf("run browser: %w", err)
	}
	return nil
}

func orSize(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
