package ui

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
)

// ParseKeys turns a key script into key presses. Tokens in angle brackets
// name keys ("<Tab>", "<S-Tab>", "<CR>", "<Esc>", "<Space>", "<Down>",
// "<C-y>"); everything else is typed literally. A leading backslash makes
// the whole token literal.
func ParseKeys(tokens []string) ([]tea.KeyPressMsg, error) {
	var out []tea.KeyPressMsg
	for _, raw := range tokens {
		if raw == "" {
			continue
		}
		if strings.HasPrefix(raw, `\`) {
			out = append(out, literal(strings.TrimPrefix(raw, `\`))...)
			continue
		}
		rest := raw
		for rest != "" {
			start := strings.Index(rest, "<")
			if start < 0 {
				out = append(out, literal(rest)...)
				break
			}
			end := strings.Index(rest[start:], ">")
			if end < 0 {
				out = append(out, literal(rest)...)
				break
			}
			end += start
			out = append(out, literal(rest[:start])...)
			key, ok := namedKey(rest[start+1 : end])
			if !ok {
				return nil, fmt.Errorf("unknown key %q", rest[start:end+1])
			}
			out = append(out, key)
			rest = rest[end+1:]
		}
	}
	return out, nil
}

func literal(s string) []tea.KeyPressMsg {
	out := make([]tea.KeyPressMsg, 0, len(s))
	for _, r := range s {
		out = append(out, tea.KeyPressMsg{Code: r, Text: string(r)})
	}
	return out
}

func namedKey(name string) (tea.KeyPressMsg, bool) {
	lower := strings.ToLower(name)
	switch lower {
	case "esc", "escape", "c-[":
		return tea.KeyPressMsg{Code: tea.KeyEscape}, true
	case "cr", "enter", "return":
		return tea.KeyPressMsg{Code: tea.KeyEnter}, true
	case "tab":
		return tea.KeyPressMsg{Code: tea.KeyTab}, true
	case "s-tab":
		return tea.KeyPressMsg{Code: tea.KeyTab, Mod: tea.ModShift}, true
	case "space":
		return tea.KeyPressMsg{Code: tea.KeySpace, Text: " "}, true
	case "bs", "backspace":
		return tea.KeyPressMsg{Code: tea.KeyBackspace}, true
	case "left":
		return tea.KeyPressMsg{Code: tea.KeyLeft}, true
	case "right":
		return tea.KeyPressMsg{Code: tea.KeyRight}, true
	case "up":
		return tea.KeyPressMsg{Code: tea.KeyUp}, true
	case "down":
		return tea.KeyPressMsg{Code: tea.KeyDown}, true
	}
	if strings.HasPrefix(lower, "c-") && len([]rune(lower)) == 3 {
		return tea.KeyPressMsg{Code: []rune(lower)[2], Mod: tea.ModCtrl}, true
	}
	return tea.KeyPressMsg{}, false
}

// Play feeds keys to the model and runs every command they produce to
// completion before the next key. It stops early when a key quits.
func (m *Model) Play(keys []tea.KeyPressMsg) {
	for _, k := range keys {
		if m.quitting {
			return
		}
		_, cmd := m.Update(k)
		m.settle(cmd)
	}
}

// settle runs cmd synchronously and feeds its messages back into the
// model. Spinner ticks are dropped so loading states stay put.
func (m *Model) settle(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case nil, spinner.TickMsg, tea.QuitMsg:
	case tea.BatchMsg:
		for _, c := range msg {
			m.settle(c)
		}
	default:
		_, next := m.Update(msg)
		m.settle(next)
	}
}
