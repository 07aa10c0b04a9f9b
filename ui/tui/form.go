package tui

import (
	"chat-client/auth"
	"chat-client/runtime"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	fieldUsername = iota
	fieldEmail
	fieldPassword
)

// authForm switches between login and registration.
// The username field only exists in registration mode.
type authForm struct {
	register    bool
	acceptTerms bool
	inputs      []textinput.Model
	focus       int
}

func newAuthForm() authForm {
	inputs := make([]textinput.Model, 3)
	for i := range inputs {
		ti := textinput.New()
		ti.CharLimit = 128
		ti.Width = 32
		inputs[i] = ti
	}
	inputs[fieldUsername].Placeholder = "username"
	inputs[fieldEmail].Placeholder = "email"
	inputs[fieldPassword].Placeholder = "password"
	inputs[fieldPassword].EchoMode = textinput.EchoPassword
	inputs[fieldPassword].EchoCharacter = '•'

	f := authForm{inputs: inputs, focus: fieldEmail}
	f.inputs[fieldEmail].Focus()
	return f
}

func (f *authForm) fields() []int {
	if f.register {
		return []int{fieldUsername, fieldEmail, fieldPassword}
	}
	return []int{fieldEmail, fieldPassword}
}

func (f *authForm) move(step int) tea.Cmd {
	fields := f.fields()
	pos := 0
	for i, field := range fields {
		if field == f.focus {
			pos = i
		}
	}
	pos = (pos + step + len(fields)) % len(fields)
	return f.focusField(fields[pos])
}

func (f *authForm) focusField(field int) tea.Cmd {
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
	f.focus = field
	return f.inputs[field].Focus()
}

func (f *authForm) toggleMode() tea.Cmd {
	f.register = !f.register
	if f.register {
		return f.focusField(fieldUsername)
	}
	return f.focusField(fieldEmail)
}

func (f *authForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

func (f *authForm) loginRequest() auth.LoginRequest {
	return auth.LoginRequest{
		Email:    strings.TrimSpace(f.inputs[fieldEmail].Value()),
		Password: f.inputs[fieldPassword].Value(),
	}
}

func (f *authForm) registerRequest() auth.RegisterRequest {
	return auth.RegisterRequest{
		Username:    strings.TrimSpace(f.inputs[fieldUsername].Value()),
		Email:       strings.TrimSpace(f.inputs[fieldEmail].Value()),
		Password:    f.inputs[fieldPassword].Value(),
		AcceptTerms: f.acceptTerms,
	}
}

// submit hands the form to the client. The password is cleared whatever the outcome.
func (f *authForm) submit(client *runtime.Client) tea.Cmd {
	var cmd tea.Cmd
	if f.register {
		cmd = client.Register(f.registerRequest())
	} else {
		cmd = client.Login(f.loginRequest())
	}
	f.inputs[fieldPassword].Reset()
	return cmd
}

func (f *authForm) view(view runtime.View) string {
	var b strings.Builder
	if f.register {
		b.WriteString(titleStyle.Render("Create an account"))
	} else {
		b.WriteString(titleStyle.Render("Sign in"))
	}
	b.WriteString("\n\n")
	for _, field := range f.fields() {
		b.WriteString(f.inputs[field].View())
		b.WriteString("\n")
	}
	if f.register {
		box := "[ ]"
		if f.acceptTerms {
			box = "[x]"
		}
		b.WriteString(box + " I accept the terms of use\n")
	}
	b.WriteString("\n")
	switch {
	case view.Pending:
		b.WriteString(helpStyle.Render("Signing in…"))
	case view.AuthErr != nil:
		b.WriteString(errorStyle.Render(view.AuthErr.Error()))
	}
	b.WriteString("\n")
	help := "enter: sign in • tab: next field • ctrl+r: register • ctrl+c: quit"
	if f.register {
		help = "enter: register • tab: next field • ctrl+t: accept terms • ctrl+r: sign in • ctrl+c: quit"
	}
	b.WriteString(helpStyle.Render(help))
	return b.String()
}
