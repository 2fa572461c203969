// Package signal defines the JSON payloads exchanged with the frontend
// over the room data channel.
package signal

import (
	"encoding/json"
	"unicode/utf8"
)

// Signal types carried in the "type" discriminator field.
const (
	TypeCrisisPopup   = "CRISIS_POPUP"
	TypeCodeSnapshot  = "CODE_SNAPSHOT"
	TypeTranscript    = "TRANSCRIPT"
	TypeToggleNotepad = "TOGGLE_NOTEPAD"
	TypeCrisisAlert   = "CRISIS_ALERT"
	TypeInterviewEnd  = "INTERVIEW_END"
)

type crisisPopup struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

type codeSnapshot struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

type transcript struct {
	Type   string `json:"type"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

type toggleNotepad struct {
	Type    string `json:"type"`
	Visible bool   `json:"visible"`
}

type crisisAlert struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type interviewEnd struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Only plain structs of strings/bools reach here.
		panic(err)
	}
	return data
}

// CrisisPopup builds a crisis popup payload. Messages are truncated on a
// rune boundary to keep the popup readable.
func CrisisPopup(title, message string) []byte {
	const maxLen = 100
	if len(message) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(message[cut]) {
			cut--
		}
		message = message[:cut] + "..."
	}
	return mustMarshal(crisisPopup{Type: TypeCrisisPopup, Title: title, Message: message})
}

// CodeSnapshot builds a code snapshot payload.
func CodeSnapshot(code string) []byte {
	return mustMarshal(codeSnapshot{Type: TypeCodeSnapshot, Code: code})
}

// Transcript builds a transcript broadcast payload.
func Transcript(sender, text string) []byte {
	return mustMarshal(transcript{Type: TypeTranscript, Sender: sender, Text: text})
}

// ToggleNotepad builds a notepad visibility payload.
func ToggleNotepad(visible bool) []byte {
	return mustMarshal(toggleNotepad{Type: TypeToggleNotepad, Visible: visible})
}

// CrisisAlert builds a crisis alert banner payload.
func CrisisAlert(message string) []byte {
	return mustMarshal(crisisAlert{Type: TypeCrisisAlert, Message: message})
}

// InterviewEnd builds the end-of-interview payload.
func InterviewEnd(reason string) []byte {
	return mustMarshal(interviewEnd{Type: TypeInterviewEnd, Reason: reason})
}
