package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/samiralibabic/mcpterm/internal/events"
)

const scrollAmount = 10

// keyFromMsg translates a bubbletea key into the bus representation.
func keyFromMsg(msg tea.KeyMsg) events.Key {
	var k events.Key
	if msg.Alt {
		k.Modifiers |= events.ModAlt
	}
	switch t := msg.Type; {
	case t == tea.KeyRunes:
		k.Code = events.KeyChar
		if len(msg.Runes) > 0 {
			k.Rune = msg.Runes[0]
		}
	case t == tea.KeySpace:
		k.Code, k.Rune = events.KeyChar, ' '
	case t == tea.KeyEnter:
		k.Code = events.KeyEnter
	case t == tea.KeyTab:
		k.Code = events.KeyTab
	case t == tea.KeyShiftTab:
		k.Code = events.KeyTab
		k.Modifiers |= events.ModShift
	case t == tea.KeyEsc:
		k.Code = events.KeyEsc
	case t == tea.KeyBackspace:
		k.Code = events.KeyBackspace
	case t == tea.KeyDelete:
		k.Code = events.KeyDelete
	case t == tea.KeyUp:
		k.Code = events.KeyUp
	case t == tea.KeyDown:
		k.Code = events.KeyDown
	case t == tea.KeyLeft:
		k.Code = events.KeyLeft
	case t == tea.KeyRight:
		k.Code = events.KeyRight
	case t == tea.KeyPgUp:
		k.Code = events.KeyPgUp
	case t == tea.KeyPgDown:
		k.Code = events.KeyPgDown
	case t == tea.KeyHome:
		k.Code = events.KeyHome
	case t == tea.KeyEnd:
		k.Code = events.KeyEnd
	case t <= tea.KeyF1 && t >= tea.KeyF20:
		// Special key types count downwards from KeyRunes.
		k.Code = events.KeyF
		k.F = int(tea.KeyF1-t) + 1
	case t >= tea.KeyCtrlA && t <= tea.KeyCtrlZ:
		k.Code = events.KeyChar
		k.Rune = 'a' + rune(t-tea.KeyCtrlA)
		k.Modifiers |= events.ModCtrl
	default:
		k.Code = events.KeyOther
	}
	return k
}

// action maps a key press to the UI event it triggers, if any. input is the
// current prompt text.
func action(k events.Key, input string) events.UIEvent {
	ctrl := k.Modifiers.Has(events.ModCtrl)
	switch {
	case k.Code == events.KeyEnter:
		return events.UserInput{Text: input}
	case k.Code == events.KeyEsc:
		return events.RequestCancellation{}
	case ctrl && k.Rune == 'c':
		return events.Quit{}
	case ctrl && k.Rune == 'l':
		return events.ClearConversation{}
	case k.Code == events.KeyPgUp:
		return events.Scroll{Direction: events.ScrollUp, Amount: scrollAmount}
	case k.Code == events.KeyPgDown:
		return events.Scroll{Direction: events.ScrollDown, Amount: scrollAmount}
	case k.Code == events.KeyTab && !k.Modifiers.Has(events.ModShift):
		return events.ToggleFocus{}
	}
	return nil
}
