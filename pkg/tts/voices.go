package tts

import (
	openai "github.com/sashabaranov/go-openai"
)

// Voice types offered in the settings panel.
const (
	VoiceDefault = "default"
	VoiceFemale  = "female"
	VoiceMale    = "male"
)

// DefaultOpenAIVoices maps voice types to OpenAI voices.
var DefaultOpenAIVoices = map[string]openai.SpeechVoice{
	VoiceDefault: openai.VoiceAlloy,
	VoiceFemale:  openai.VoiceNova,
	VoiceMale:    openai.VoiceOnyx,
}

// openAIVoice resolves a voice type, honoring overrides from Config.Voices.
func openAIVoice(overrides map[string]string, voiceType string) openai.SpeechVoice {
	if v, ok := overrides[voiceType]; ok && v != "" {
		return openai.SpeechVoice(v)
	}
	if v, ok := DefaultOpenAIVoices[voiceType]; ok {
		return v
	}
	return DefaultOpenAIVoices[VoiceDefault]
}
