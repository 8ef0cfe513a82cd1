// Package wire implements the bus's typed, self-describing message codec:
// framing, the message kind table, and the extension value types
// (proxy references, symbols, exceptions, class tokens, and
// connection-registered reference types).
package wire

import "fmt"

// Tag identifies the wire-visible kind of a framed message or an
// extension-typed nested value. These numeric values are the wire ABI;
// implementations must preserve them exactly (spec §4.1).
type Tag byte

const (
	TagInvoke Tag = 0x00
	TagReturn Tag = 0x01
	TagYield  Tag = 0x02
	TagError  Tag = 0x03
	TagNext   Tag = 0x04
	TagThrow  Tag = 0x05
	TagClose  Tag = 0x06

	TagProxyRef Tag = 0x10
	TagRelease  Tag = 0x11

	TagSymbol     Tag = 0x20
	TagException  Tag = 0x21
	TagClassToken Tag = 0x22

	// TagReferenceBase opens the range reserved for per-connection
	// registered reference types ("0x30+" in the spec's type table). Tags
	// are handed out to registered kinds in registration order, which is
	// itself part of the wire ABI between two peers configured the same way.
	TagReferenceBase Tag = 0x30
)

func (t Tag) String() string {
	switch t {
	case TagInvoke:
		return "Invoke"
	case TagReturn:
		return "Return"
	case TagYield:
		return "Yield"
	case TagError:
		return "Error"
	case TagNext:
		return "Next"
	case TagThrow:
		return "Throw"
	case TagClose:
		return "Close"
	case TagProxyRef:
		return "ProxyRef"
	case TagRelease:
		return "Release"
	case TagSymbol:
		return "Symbol"
	case TagException:
		return "Exception"
	case TagClassToken:
		return "ClassToken"
	default:
		if t >= TagReferenceBase {
			return fmt.Sprintf("Reference(0x%02x)", byte(t))
		}
		return fmt.Sprintf("Unknown(0x%02x)", byte(t))
	}
}

// isMessageTag reports whether t is one of the top-level frame kinds
// rather than a nested extension value tag.
func isMessageTag(t Tag) bool {
	switch t {
	case TagInvoke, TagReturn, TagYield, TagError, TagNext, TagThrow, TagClose, TagRelease:
		return true
	default:
		return false
	}
}
