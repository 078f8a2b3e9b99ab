package discovery

// CapabilityProbe reports the feature strings the local device
// supports. Injected at construction so the core stays independent of
// whatever platform API actually answers the question.
type CapabilityProbe interface {
	Capabilities() []string
}

// StaticProbe is a fixed capability set.
type StaticProbe struct {
	caps []string
}

// NewStaticProbe creates a probe returning the given capabilities.
func NewStaticProbe(caps ...string) *StaticProbe {
	return &StaticProbe{caps: caps}
}

// Capabilities implements CapabilityProbe.
func (p *StaticProbe) Capabilities() []string {
	out := make([]string, len(p.caps))
	copy(out, p.caps)
	return out
}

// DefaultCapabilities returns the usual feature set for a node type.
func DefaultCapabilities(t NodeType) []string {
	switch t {
	case TypeNurseStation:
		return []string{"video-call", "voice", "alerts"}
	case TypeBedside:
		return []string{"video-call", "voice", "vitals"}
	case TypeAdmin:
		return []string{"voice"}
	default:
		return nil
	}
}
