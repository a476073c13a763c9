package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/mikkurogue/jj-ryu/internal/analyzer"
)

func ryuHuhTheme() *huh.Theme {
	t := *huh.ThemeCharm()
	t.Focused.FocusedButton = t.Focused.FocusedButton.Background(lipgloss.Color("#7D56F4"))
	t.Focused.Next = t.Focused.FocusedButton
	return &t
}

// selectPrompt returns an analyzer.Selector backed by an interactive
// multi-select form when enabled is true, or nil otherwise — the
// analyzer treats a nil selector as "skip interactive selection".
func selectPrompt(enabled bool) analyzer.Selector {
	if !enabled {
		return nil
	}
	return func(candidates []string, preMarked map[string]bool) ([]string, error) {
		options := make([]huh.Option[string], 0, len(candidates))
		for _, name := range candidates {
			opt := huh.NewOption(name, name)
			if preMarked[name] {
				opt = opt.Selected(true)
			}
			options = append(options, opt)
		}

		var picked []string
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewMultiSelect[string]().
					Title("Select bookmarks to submit").
					Options(options...).
					Value(&picked),
			),
		).WithTheme(ryuHuhTheme())

		if err := form.Run(); err != nil {
			return nil, fmt.Errorf("interactive selection cancelled: %w", err)
		}
		return picked, nil
	}
}
