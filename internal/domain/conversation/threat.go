package conversation

// ThreatLevel grades how risky a sender's recent behavior looks, from
// fully trusted (0) to critical (4).
type ThreatLevel int

const (
	// Trusted is the default for agents with no risky history.
	Trusted ThreatLevel = iota
	// Low indicates mildly unusual behavior.
	Low
	// Moderate indicates behavior worth watching.
	Moderate
	// High triggers message-policy checking for traffic on this agent.
	High
	// Critical is the ceiling.
	Critical
)

// CheckThreshold is the level above which message traffic gets policy
// checked. The comparison is strictly greater-than.
const CheckThreshold = Moderate

// ClampThreatLevel forces an arbitrary integer into the valid 0..4 range.
// Watcher output passes through here so a confused oracle can never push a
// sender outside the scale.
func ClampThreatLevel(n int) ThreatLevel {
	if n < int(Trusted) {
		return Trusted
	}
	if n > int(Critical) {
		return Critical
	}
	return ThreatLevel(n)
}

// String returns the label judges see in their prompts.
func (l ThreatLevel) String() string {
	switch l {
	case Trusted:
		return "Trusted"
	case Low:
		return "Low"
	case Moderate:
		return "Moderate"
	case High:
		return "High"
	case Critical:
		return "Critical"
	default:
		if l < Trusted {
			return Trusted.String()
		}
		return Critical.String()
	}
}

// Exceeds reports whether the level is past the checking threshold.
func (l ThreatLevel) Exceeds(threshold ThreatLevel) bool {
	return l > threshold
}
