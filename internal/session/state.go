package session

import (
	"time"

	"github.com/hpungsan/chatbox/internal/errors"
	"github.com/hpungsan/chatbox/internal/project"
)

// Role identifies the author of a chat entry.
type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

// Tab is an output panel.
type Tab string

const (
	TabCode      Tab = "code"
	TabBOM       Tab = "bom"
	TabSchematic Tab = "schematic"
)

// Tabs lists every tab in display order.
var Tabs = []Tab{TabCode, TabBOM, TabSchematic}

// ParseTab validates a tab name.
func ParseTab(s string) (Tab, bool) {
	for _, t := range Tabs {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// WelcomeMessage seeds the chat log of every new session.
const WelcomeMessage = "Welcome to Arduino ChatBox 3D! Describe your project idea to get started."

// ChatEntry is one line of the append-only transcript.
type ChatEntry struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// State is a snapshot of the session.
type State struct {
	Prompt    string           `json:"prompt"`
	Loading   bool             `json:"loading"`
	Error     string           `json:"error,omitempty"`
	ErrorCode errors.ErrorCode `json:"error_code,omitempty"`
	Project   *project.Project `json:"project,omitempty"`
	ActiveTab Tab              `json:"active_tab"`
	Chat      []ChatEntry      `json:"chat"`
}

// clone returns a deep copy safe to hand to callers.
func (s State) clone() State {
	out := s
	out.Project = s.Project.Clone()
	out.Chat = append([]ChatEntry(nil), s.Chat...)
	return out
}

// HasProject reports whether a generated project is available.
func (s State) HasProject() bool {
	return s.Project != nil
}

// LastError rebuilds the structured error recorded in the snapshot, or
// returns nil when the snapshot carries none.
func (s State) LastError() *errors.ChatboxError {
	if s.Error == "" {
		return nil
	}
	code := s.ErrorCode
	if code == "" {
		code = errors.ErrGenerationFailed
	}
	status := 502
	if code == errors.ErrExportFailed {
		status = 422
	}
	return &errors.ChatboxError{Code: code, Status: status, Message: s.Error}
}

func modelReply(projectName string) string {
	return `I have generated the project "` + projectName + `". You can view the details in the output panel.`
}

func systemReply(msg string) string {
	return "Error: " + msg
}
