package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Symbol is a lightweight interned-token value, analogous to a Ruby
// symbol. It round-trips through tag 0x20.
type Symbol string

// ClassToken names a class by its fully qualified name only; resolving it
// to an actual type is environment-dependent and may fail (spec §4.1).
type ClassToken struct {
	Name string
}

// Exception carries a best-effort reconstruction of a remote error: its
// class name, message, and an opaque textual backtrace (spec §4.1, §7).
type Exception struct {
	Class     string
	Message   string
	Backtrace []string
}

func (e *Exception) Error() string {
	return fmt.Sprintf("%s: %s", e.Class, e.Message)
}

// ProxyRef is the decoded form of tag 0x10 before the Resolver turns it
// into either a round-tripped local object or a remote Proxy.
type ProxyRef struct {
	Name string
}

// ProxyLike is implemented by proxy values (proxy.Proxy) so the codec can
// recognize and encode them without importing the proxy package, which
// would otherwise cycle back through connection -> wire.
type ProxyLike interface {
	ProxyName() string
	// ProxyOwner returns an opaque identity for the Connection that owns
	// this proxy, so the codec can tell a local round-trip from a foreign
	// (multi-hop) proxy without knowing the Connection type itself.
	ProxyOwner() interface{}
}

// Resolver is the callback surface the codec uses to resolve extension
// values against a particular Connection during encode and decode
// (spec §4.1 "Pure function of bytes and a resolver callback").
type Resolver interface {
	// Owner returns this connection's own identity token, compared against
	// a ProxyLike's ProxyOwner() to detect local round-trips.
	Owner() interface{}

	// BindForeignProxy mints a fresh implicit Name on this connection for
	// a proxy that belongs to a different connection (multi-hop forwarding).
	BindForeignProxy(p ProxyLike) (name string, err error)

	// MintImplicitName binds obj under a fresh (or existing) implicit Name
	// for a registered reference-type value encountered during encode.
	MintImplicitName(obj interface{}) (name string, err error)

	// ReferenceTag returns the extension tag registered for obj's runtime
	// kind, and ok=false if obj's kind is not a reference type on this
	// connection.
	ReferenceTag(obj interface{}) (tag Tag, ok bool)

	// ResolveProxyRef decodes a ProxyRef's Name: if the Name is locally
	// bound, the bound object is returned (round-trip identity); otherwise
	// a Proxy for the remote object is constructed and returned.
	ResolveProxyRef(name string) (interface{}, error)

	// NewReference constructs the value for a decoded reference-type tag,
	// given the Name written by the peer.
	NewReference(tag Tag, name string) (interface{}, error)
}

// internal tags for plain scalar/collection values, a local encoding
// detail of this implementation. They sit above the message and named
// extension tags (0x00-0x22), inside the open-ended reference range that
// starts at 0x30: readValue decodes 0x80-0x87 as these plain values, so
// reference types registered at indexes 0x50-0x57 would collide with them.
const (
	valNil byte = 0x80 + iota
	valBool
	valInt
	valFloat
	valString
	valBytes
	valArray
	valMap
)

func writeValue(w *bufio.Writer, v interface{}, res Resolver) error {
	if tag, ok := res.ReferenceTag(v); ok {
		name, err := res.MintImplicitName(v)
		if err != nil {
			return err
		}
		return writeTaggedName(w, tag, name)
	}

	switch val := v.(type) {
	case nil:
		return w.WriteByte(valNil)
	case bool:
		if err := w.WriteByte(valBool); err != nil {
			return err
		}
		if val {
			return w.WriteByte(1)
		}
		return w.WriteByte(0)
	case int:
		return writeInt(w, int64(val))
	case int64:
		return writeInt(w, val)
	case float64:
		if err := w.WriteByte(valFloat); err != nil {
			return err
		}
		return binary.Write(w, binary.BigEndian, math.Float64bits(val))
	case string:
		return writeString(w, val)
	case []byte:
		if err := w.WriteByte(valBytes); err != nil {
			return err
		}
		return writeLenPrefixed(w, val)
	case Symbol:
		return writeTaggedName(w, TagSymbol, string(val))
	case ClassToken:
		return writeTaggedName(w, TagClassToken, val.Name)
	case *Exception:
		return writeException(w, val)
	case ProxyRef:
		return writeProxyRef(w, val, res)
	case ProxyLike:
		return writeProxy(w, val, res)
	case []interface{}:
		if err := w.WriteByte(valArray); err != nil {
			return err
		}
		if err := writeUvarint(w, uint64(len(val))); err != nil {
			return err
		}
		for _, item := range val {
			if err := writeValue(w, item, res); err != nil {
				return err
			}
		}
		return nil
	case map[string]interface{}:
		if err := w.WriteByte(valMap); err != nil {
			return err
		}
		if err := writeUvarint(w, uint64(len(val))); err != nil {
			return err
		}
		for k, item := range val {
			if err := writeLenPrefixedString(w, k); err != nil {
				return err
			}
			if err := writeValue(w, item, res); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("wire: unsupported value type %T", v)
	}
}

func writeProxyRef(w *bufio.Writer, ref ProxyRef, res Resolver) error {
	return writeTaggedName(w, TagProxyRef, ref.Name)
}

// writeProxy realizes the §4.1 Proxy encoding rule: a proxy owned by this
// connection writes its own Name; a proxy owned by a different
// connection is re-advertised under a fresh implicit Name here.
func writeProxy(w *bufio.Writer, p ProxyLike, res Resolver) error {
	if p.ProxyOwner() == res.Owner() {
		return writeTaggedName(w, TagProxyRef, p.ProxyName())
	}
	name, err := res.BindForeignProxy(p)
	if err != nil {
		return err
	}
	return writeTaggedName(w, TagProxyRef, name)
}

func writeException(w *bufio.Writer, e *Exception) error {
	if err := w.WriteByte(byte(TagException)); err != nil {
		return err
	}
	if err := writeLenPrefixedString(w, e.Class); err != nil {
		return err
	}
	if err := writeLenPrefixedString(w, e.Message); err != nil {
		return err
	}
	if err := writeUvarint(w, uint64(len(e.Backtrace))); err != nil {
		return err
	}
	for _, line := range e.Backtrace {
		if err := writeLenPrefixedString(w, line); err != nil {
			return err
		}
	}
	return nil
}

func writeTaggedName(w *bufio.Writer, tag Tag, name string) error {
	if err := w.WriteByte(byte(tag)); err != nil {
		return err
	}
	return writeLenPrefixedString(w, name)
}

func writeInt(w *bufio.Writer, v int64) error {
	if err := w.WriteByte(valInt); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, v)
}

// writeString writes a string as a generic value (valString tag followed
// by its length-prefixed bytes). It is paired with readValue's own
// valString case, which consumes the tag byte itself via its dispatch
// read before delegating to readLenPrefixedString for the remainder.
// Bare string fields that are decoded directly via readLenPrefixedString
// (Invoke method names, Release names, tagged names, exception fields,
// map keys) must use
// writeLenPrefixedString instead, which omits the tag byte.
func writeString(w *bufio.Writer, s string) error {
	if err := w.WriteByte(valString); err != nil {
		return err
	}
	return writeLenPrefixed(w, []byte(s))
}

// writeLenPrefixedString writes a raw length-prefixed string with no
// leading type tag, matching readLenPrefixedString on the decode side.
func writeLenPrefixedString(w *bufio.Writer, s string) error {
	return writeLenPrefixed(w, []byte(s))
}

func writeLenPrefixed(w *bufio.Writer, b []byte) error {
	if err := writeUvarint(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func writeUvarint(w *bufio.Writer, v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, err := w.Write(buf[:n])
	return err
}

func readValue(r *bufio.Reader, res Resolver) (interface{}, error) {
	b, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	switch b {
	case valNil:
		return nil, nil
	case valBool:
		bb, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		return bb != 0, nil
	case valInt:
		var v int64
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return nil, err
		}
		return v, nil
	case valFloat:
		var bits uint64
		if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
			return nil, err
		}
		return math.Float64frombits(bits), nil
	case valString:
		s, err := readLenPrefixedString(r)
		if err != nil {
			return nil, err
		}
		return s, nil
	case valBytes:
		return readLenPrefixedBytes(r)
	case valArray:
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		arr := make([]interface{}, 0, n)
		for i := uint64(0); i < n; i++ {
			v, err := readValue(r, res)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case valMap:
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		m := make(map[string]interface{}, n)
		for i := uint64(0); i < n; i++ {
			k, err := readLenPrefixedString(r)
			if err != nil {
				return nil, err
			}
			v, err := readValue(r, res)
			if err != nil {
				return nil, err
			}
			m[k] = v
		}
		return m, nil
	case byte(TagProxyRef):
		name, err := readLenPrefixedString(r)
		if err != nil {
			return nil, err
		}
		return res.ResolveProxyRef(name)
	case byte(TagSymbol):
		name, err := readLenPrefixedString(r)
		if err != nil {
			return nil, err
		}
		return Symbol(name), nil
	case byte(TagClassToken):
		name, err := readLenPrefixedString(r)
		if err != nil {
			return nil, err
		}
		return ClassToken{Name: name}, nil
	case byte(TagException):
		return readException(r)
	default:
		if Tag(b) >= TagReferenceBase {
			name, err := readLenPrefixedString(r)
			if err != nil {
				return nil, err
			}
			return res.NewReference(Tag(b), name)
		}
		return nil, &ProtocolError{Reason: fmt.Sprintf("unknown value tag 0x%02x", b)}
	}
}

func readException(r *bufio.Reader) (*Exception, error) {
	class, err := readLenPrefixedString(r)
	if err != nil {
		return nil, err
	}
	msg, err := readLenPrefixedString(r)
	if err != nil {
		return nil, err
	}
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	backtrace := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		line, err := readLenPrefixedString(r)
		if err != nil {
			return nil, err
		}
		backtrace = append(backtrace, line)
	}
	return &Exception{Class: class, Message: msg, Backtrace: backtrace}, nil
}

func readLenPrefixedString(r *bufio.Reader) (string, error) {
	b, err := readLenPrefixedBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readLenPrefixedBytes(r *bufio.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if n > maxValueLen {
		return nil, &ProtocolError{Reason: fmt.Sprintf("value length %d exceeds maximum %d", n, maxValueLen)}
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// maxValueLen bounds any single string/bytes payload decoded from the
// wire, guarding against a malformed or hostile peer claiming an
// enormous length prefix.
const maxValueLen = 64 * 1024 * 1024
