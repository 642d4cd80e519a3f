// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/central/lib/agentsession"
	"github.com/bureau-foundation/central/lib/agentwire"
)

// eventPrinter writes forwarded agent events either as JSON lines or
// as styled text for a person at a terminal.
type eventPrinter struct {
	out    io.Writer
	styled bool
	width  int

	timeStyle    lipgloss.Style
	typeStyle    lipgloss.Style
	roleStyle    lipgloss.Style
	toolStyle    lipgloss.Style
	successStyle lipgloss.Style
	failureStyle lipgloss.Style
	faintStyle   lipgloss.Style
}

func newEventPrinter(out io.Writer, styled bool, width int) *eventPrinter {
	if width <= 0 {
		width = 100
	}
	return &eventPrinter{
		out:          out,
		styled:       styled,
		width:        width,
		timeStyle:    lipgloss.NewStyle().Faint(true),
		typeStyle:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		roleStyle:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13")),
		toolStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		successStyle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		failureStyle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		faintStyle:   lipgloss.NewStyle().Faint(true),
	}
}

func (p *eventPrinter) print(event agentsession.SessionEvent) error {
	if !p.styled {
		data, err := agentwire.EncodeEvent(event.Event)
		if err != nil {
			return err
		}
		return agentwire.WriteLine(p.out, data)
	}
	_, err := fmt.Fprintln(p.out, p.render(event))
	return err
}

func (p *eventPrinter) render(event agentsession.SessionEvent) string {
	stamp := p.timeStyle.Render(event.ReceivedAt.Format("15:04:05"))
	kind := p.typeStyle.Render(fmt.Sprintf("%-21s", event.Event.Type()))
	return stamp + " " + kind + " " + p.detail(event.Event)
}

func (p *eventPrinter) detail(event agentwire.Event) string {
	switch event := event.(type) {
	case agentwire.SessionStarted:
		return p.faintStyle.Render("sdk session " + event.SDKSessionID)
	case agentwire.Message:
		text := event.Content
		if event.Thinking != "" {
			text = p.faintStyle.Render("("+p.truncate(event.Thinking)+") ") + text
		}
		return p.roleStyle.Render(event.Role+":") + " " + p.truncate(text)
	case agentwire.ToolUse:
		return p.toolStyle.Render(event.ToolName) + " " + p.truncate(string(event.Input))
	case agentwire.ToolResult:
		return p.toolStyle.Render(event.ToolName) + " " + p.truncate(strings.ReplaceAll(event.Output, "\n", " ⏎ "))
	case agentwire.ToolApprovalRequest:
		return p.toolStyle.Render(event.ToolName) + " " + p.faintStyle.Render("request "+event.RequestID) + " " + p.truncate(string(event.Input))
	case agentwire.ToolProgress:
		return p.toolStyle.Render(event.ToolName) + p.faintStyle.Render(fmt.Sprintf(" %.1fs", event.ElapsedSeconds))
	case agentwire.SessionCompleted:
		summary := "completed"
		if event.TotalCostUSD != nil {
			summary += fmt.Sprintf(" $%.4f", *event.TotalCostUSD)
		}
		if event.DurationMS != nil {
			summary += fmt.Sprintf(" in %dms", *event.DurationMS)
		}
		return p.successStyle.Render(summary)
	case agentwire.SessionFailed:
		return p.failureStyle.Render("failed: " + event.Error)
	case agentwire.ErrorEvent:
		return p.failureStyle.Render(event.Message)
	}
	return ""
}

// truncate strips escapes the worker may have embedded and fits text to
// the remaining line width.
func (p *eventPrinter) truncate(text string) string {
	return ansi.Truncate(ansi.Strip(text), max(p.width-32, 20), "…")
}
