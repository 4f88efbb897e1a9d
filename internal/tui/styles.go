// Package tui renders the submission wizards and the live admin lists in
// a terminal.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/greonxpert/console/pkg/core"
)

const (
	colorBrand  = lipgloss.Color("#2E7D32")
	colorAccent = lipgloss.Color("#66BB6A")
	colorMuted  = lipgloss.Color("#8A8A8A")
	colorError  = lipgloss.Color("#E53935")
	colorWarn   = lipgloss.Color("#FB8C00")
	colorInfo   = lipgloss.Color("#1E88E5")
)

type styles struct {
	title    lipgloss.Style
	step     lipgloss.Style
	label    lipgloss.Style
	active   lipgloss.Style
	value    lipgloss.Style
	dim      lipgloss.Style
	err      lipgloss.Style
	help     lipgloss.Style
	tag      lipgloss.Style
	slot     lipgloss.Style
	slotOn   lipgloss.Style
	success  lipgloss.Style
	tab      lipgloss.Style
	tabOn    lipgloss.Style
	flashFor map[core.FlashKind]lipgloss.Style
}

func defaultStyles() styles {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorMuted).
		Padding(0, 1)

	banner := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(colorBrand),
		step:    lipgloss.NewStyle().Foreground(colorAccent),
		label:   lipgloss.NewStyle().Bold(true),
		active:  lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
		value:   lipgloss.NewStyle(),
		dim:     lipgloss.NewStyle().Foreground(colorMuted),
		err:     lipgloss.NewStyle().Foreground(colorError),
		help:    lipgloss.NewStyle().Foreground(colorMuted).MarginTop(1),
		tag:     lipgloss.NewStyle().Foreground(colorAccent),
		slot:    box,
		slotOn:  box.BorderForeground(colorAccent),
		success: lipgloss.NewStyle().Bold(true).Foreground(colorBrand),
		tab:     lipgloss.NewStyle().Padding(0, 1).Foreground(colorMuted),
		tabOn:   lipgloss.NewStyle().Padding(0, 1).Bold(true).Underline(true).Foreground(colorBrand),
		flashFor: map[core.FlashKind]lipgloss.Style{
			core.FlashInfo:    banner.Foreground(colorInfo),
			core.FlashSuccess: banner.Foreground(colorBrand),
			core.FlashWarning: banner.Foreground(colorWarn),
			core.FlashError:   banner.Foreground(colorError),
		},
	}
}
