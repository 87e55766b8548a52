package cmd

import (
	"github.com/creativeprojects/pop3/term"
	"github.com/pterm/pterm"
)

// Progresser is notified once per downloaded message
type Progresser interface {
	Increment()
}

// progressBar is only displayed at the default output level
type progressBar struct {
	pbar *pterm.ProgressbarPrinter
}

func newProgressBar(title string, total int) *progressBar {
	if total == 0 || term.GetLevel() != term.LevelInfo {
		return &progressBar{}
	}
	pbar, err := pterm.DefaultProgressbar.WithTotal(total).WithTitle(title).Start()
	if err != nil {
		return &progressBar{}
	}
	return &progressBar{pbar: pbar}
}

func (p *progressBar) Increment() {
	if p.pbar == nil {
		return
	}
	p.pbar.Increment()
}

func (p *progressBar) Stop() {
	if p.pbar == nil {
		return
	}
	_, _ = p.pbar.Stop()
	p.pbar = nil
}
