package rag

import "strings"

// Tone is a summary style directive.
type Tone string

const (
	ToneFormal Tone = "formal"
	ToneCasual Tone = "casual"
	ToneBullet Tone = "bullet"
)

// Tones lists the supported tones in display order.
var Tones = []Tone{ToneFormal, ToneCasual, ToneBullet}

var tonePrefixes = map[Tone]string{
	ToneFormal: "Please summarize this document in a formal, professional tone:",
	ToneCasual: "Give me a relaxed, friendly summary of this document:",
	ToneBullet: "Summarize this document using clear, concise bullet points:",
}

var toneLabels = map[Tone]string{
	ToneFormal: "Formal & Professional",
	ToneCasual: "Casual & Friendly",
	ToneBullet: "Bullet Points",
}

var toneEmoji = map[Tone]string{
	ToneFormal: "🎩",
	ToneCasual: "😊",
	ToneBullet: "📌",
}

// ParseTone maps s to a known tone; anything unrecognized is formal.
func ParseTone(s string) Tone {
	t := Tone(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := tonePrefixes[t]; ok {
		return t
	}
	return ToneFormal
}

// Prefix returns the instruction placed before the document text.
func (t Tone) Prefix() string {
	return tonePrefixes[ParseTone(string(t))]
}

// Label returns a human-readable name.
func (t Tone) Label() string {
	return toneLabels[ParseTone(string(t))]
}

// Emoji returns the tone's display icon.
func (t Tone) Emoji() string {
	return toneEmoji[ParseTone(string(t))]
}
