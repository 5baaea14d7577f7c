package domain

// Setting keys stored in the key-value settings table.
const (
	SettingVoiceRouting = "voice_routing_mode"
)

// VoiceRoutingMode selects how inbound voice calls are answered.
type VoiceRoutingMode string

const (
	VoiceForward   VoiceRoutingMode = "forward"
	VoiceVoicemail VoiceRoutingMode = "voicemail"
	VoiceAnnounce  VoiceRoutingMode = "announce"
)

// ValidVoiceRoutingMode reports whether m is a known routing mode.
func ValidVoiceRoutingMode(m VoiceRoutingMode) bool {
	switch m {
	case VoiceForward, VoiceVoicemail, VoiceAnnounce:
		return true
	}
	return false
}
