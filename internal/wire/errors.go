package wire

// ProtocolError signals a decode failure (malformed payload, unknown
// tag). Per spec §4.1/§7, a ProtocolError is always fatal to the
// Connection that observed it.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "wire: protocol error: " + e.Reason
}
