package proxy

// Mechanism identifies how a proxy is attached to its target
type Mechanism int

const (
	InterfaceWrap Mechanism = iota
	SubclassWrap
	TransparentWrap
)

func (m Mechanism) String() string {
	switch m {
	case InterfaceWrap:
		return "interface"
	case SubclassWrap:
		return "subclass"
	case TransparentWrap:
		return "transparent"
	default:
		return "unknown"
	}
}

// Mechanisms lists every mechanism in declaration order
func Mechanisms() []Mechanism {
	return []Mechanism{InterfaceWrap, SubclassWrap, TransparentWrap}
}
