package tui

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"charm.land/bubbles/v2/key"
)

// keyMap represents key map data used by this package.
type keyMap struct {
	quit       key.Binding
	toggleHelp key.Binding
	moveUp     key.Binding
	moveDown   key.Binding
	toggle     key.Binding
	expand     key.Binding
	refresh    key.Binding
	copy       key.Binding
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		toggleHelp: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveUp:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "task up")),
		moveDown:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "task down")),
		toggle:     key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "complete/reopen")),
		expand:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "expand/collapse")),
		refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		copy:       key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy html")),
	}
}

// applyConfig overrides the configurable bindings; blank entries keep the defaults.
func (k *keyMap) applyConfig(cfg KeyConfig) {
	configureBinding(&k.toggle, cfg.Toggle, "space", "complete/reopen")
	configureBinding(&k.expand, cfg.Expand, "enter", "expand/collapse")
	configureBinding(&k.refresh, cfg.Refresh, "r", "refresh")
	configureBinding(&k.copy, cfg.Copy, "y", "copy html")
}

// configureBinding replaces the keys and help of b with raw, or fallback when raw is blank.
func configureBinding(b *key.Binding, raw, fallback, desc string) {
	keys, help := parseBindingKeys(raw, fallback)
	b.SetKeys(keys...)
	b.SetHelp(help, desc)
}

// parseBindingKeys turns one configured key into matcher keys and its help label.
func parseBindingKeys(raw, fallback string) ([]string, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = fallback
	}
	if strings.EqualFold(raw, "space") {
		return []string{" ", "space"}, "space"
	}
	if utf8.RuneCountInString(raw) == 1 {
		r, _ := utf8.DecodeRuneInString(raw)
		if unicode.IsUpper(r) {
			return []string{raw, "shift+" + string(unicode.ToLower(r))}, raw
		}
		return []string{raw}, raw
	}
	return []string{strings.ToLower(raw)}, raw
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.moveDown, k.toggle, k.expand, k.refresh, k.copy, k.toggleHelp, k.quit}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveUp, k.moveDown},
		{k.toggle, k.expand, k.refresh, k.copy},
		{k.toggleHelp, k.quit},
	}
}
