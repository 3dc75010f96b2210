package ui

import (
	"errors"
	"strings"
	"testing"
)

func TestFormatControl(t *testing.T) {
	tests := []struct {
		name string
		key  string
		desc string
	}{
		{name: "basic control", key: "q", desc: "Quit"},
		{name: "longer key", key: "ctrl+c", desc: "Stop watching"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatControl(tt.key, tt.desc)
			if !strings.Contains(got, tt.key) {
				t.Errorf("FormatControl() missing key %q", tt.key)
			}
			if !strings.Contains(got, tt.desc) {
				t.Errorf("FormatControl() missing description %q", tt.desc)
			}
		})
	}
}

func TestFormatStatus(t *testing.T) {
	tests := []struct {
		name    string
		running bool
		status  string
		want    string
	}{
		{name: "running", running: true, status: "compositor running", want: "●"},
		{name: "stopped", running: false, status: "waiting for socket", want: "○"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatStatus(tt.running, tt.status)
			if !strings.Contains(got, tt.status) {
				t.Errorf("FormatStatus() missing status text %q", tt.status)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("FormatStatus() missing indicator %q in %q", tt.want, got)
			}
		})
	}
}

func TestFormatListItem(t *testing.T) {
	for _, active := range []bool{false, true} {
		got := FormatListItem("headless-1", active)
		if !strings.Contains(got, "•") {
			t.Errorf("FormatListItem() missing bullet point")
		}
		if !strings.Contains(got, "headless-1") {
			t.Errorf("FormatListItem() missing item text")
		}
	}
}

func TestFormatResult(t *testing.T) {
	if got := FormatResult(nil, "session locked"); !strings.Contains(got, IconSuccess) || !strings.Contains(got, "session locked") {
		t.Errorf("FormatResult(nil) = %q", got)
	}
	got := FormatResult(errors.New("waycomp is not running"), "session locked")
	if !strings.Contains(got, IconError) || !strings.Contains(got, "not running") {
		t.Errorf("FormatResult(err) = %q", got)
	}
	if strings.Contains(got, "session locked") {
		t.Errorf("FormatResult(err) should not report success: %q", got)
	}
}

func TestCenter(t *testing.T) {
	tests := []struct {
		name    string
		width   int
		content string
	}{
		{name: "short content", width: 20, content: "Test"},
		{name: "exact width", width: 4, content: "Test"},
		{name: "content longer than width", width: 2, content: "Test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Center(tt.width, tt.content); !strings.Contains(got, tt.content) {
				t.Errorf("Center() missing content %q", tt.content)
			}
		})
	}
}

func TestCreateSeparator(t *testing.T) {
	if got := CreateSeparator(10, "="); !strings.Contains(got, strings.Repeat("=", 10)) {
		t.Errorf("CreateSeparator(10, \"=\") = %q", got)
	}
	if got := CreateSeparator(0, ""); !strings.Contains(got, strings.Repeat("─", 50)) {
		t.Errorf("CreateSeparator defaults not applied: %q", got)
	}
}
