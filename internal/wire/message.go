package wire

import (
	"bufio"
	"encoding/binary"
)

// Message is the decoded form of one framed wire unit. Only the fields
// relevant to Kind are populated; the zero value of the rest is ignored.
type Message struct {
	Kind Tag
	ID   int64

	// Invoke
	Method   string
	Args     []interface{}
	Kwargs   map[string]interface{}
	HasBlock bool

	// Return / Next
	Result interface{}

	// Yield
	Values []interface{}

	// Error
	Exception *Exception

	// Throw
	ThrowTag   string
	ThrowValue interface{}

	// Release
	Name string
}

func Invoke(id int64, method string, args []interface{}, kwargs map[string]interface{}, hasBlock bool) Message {
	return Message{Kind: TagInvoke, ID: id, Method: method, Args: args, Kwargs: kwargs, HasBlock: hasBlock}
}

func Return(id int64, result interface{}) Message {
	return Message{Kind: TagReturn, ID: id, Result: result}
}

func Yield(id int64, values []interface{}) Message {
	return Message{Kind: TagYield, ID: id, Values: values}
}

func Next(id int64, value interface{}) Message {
	return Message{Kind: TagNext, ID: id, Result: value}
}

func Err(id int64, exc *Exception) Message {
	return Message{Kind: TagError, ID: id, Exception: exc}
}

func Throw(id int64, tag string, value interface{}) Message {
	return Message{Kind: TagThrow, ID: id, ThrowTag: tag, ThrowValue: value}
}

func Close(id int64) Message {
	return Message{Kind: TagClose, ID: id}
}

func Release(name string) Message {
	return Message{Kind: TagRelease, Name: name}
}

func writeMessage(w *bufio.Writer, msg Message, res Resolver) error {
	if err := w.WriteByte(byte(msg.Kind)); err != nil {
		return err
	}

	if msg.Kind == TagRelease {
		return writeLenPrefixedString(w, msg.Name)
	}

	if err := binary.Write(w, binary.BigEndian, msg.ID); err != nil {
		return err
	}

	switch msg.Kind {
	case TagInvoke:
		if err := writeLenPrefixedString(w, msg.Method); err != nil {
			return err
		}
		if err := writeValue(w, toIfaceSlice(msg.Args), res); err != nil {
			return err
		}
		if err := writeValue(w, toIfaceMap(msg.Kwargs), res); err != nil {
			return err
		}
		var hasBlock byte
		if msg.HasBlock {
			hasBlock = 1
		}
		return w.WriteByte(hasBlock)
	case TagReturn, TagNext:
		return writeValue(w, msg.Result, res)
	case TagYield:
		return writeValue(w, toIfaceSlice(msg.Values), res)
	case TagError:
		return writeValue(w, msg.Exception, res)
	case TagThrow:
		if err := writeLenPrefixedString(w, msg.ThrowTag); err != nil {
			return err
		}
		return writeValue(w, msg.ThrowValue, res)
	case TagClose:
		return writeValue(w, nil, res)
	default:
		return &ProtocolError{Reason: "attempt to write unknown message kind"}
	}
}

func readMessage(r *bufio.Reader, res Resolver) (Message, error) {
	b, err := r.ReadByte()
	if err != nil {
		return Message{}, err
	}
	tag := Tag(b)
	if !isMessageTag(tag) {
		return Message{}, &ProtocolError{Reason: "unknown top-level message tag"}
	}

	if tag == TagRelease {
		name, err := readLenPrefixedString(r)
		if err != nil {
			return Message{}, err
		}
		return Message{Kind: TagRelease, Name: name}, nil
	}

	var id int64
	if err := binary.Read(r, binary.BigEndian, &id); err != nil {
		return Message{}, err
	}

	msg := Message{Kind: tag, ID: id}

	switch tag {
	case TagInvoke:
		method, err := readLenPrefixedString(r)
		if err != nil {
			return Message{}, err
		}
		argsVal, err := readValue(r, res)
		if err != nil {
			return Message{}, err
		}
		kwargsVal, err := readValue(r, res)
		if err != nil {
			return Message{}, err
		}
		hasBlockByte, err := r.ReadByte()
		if err != nil {
			return Message{}, err
		}
		msg.Method = method
		msg.Args = fromIfaceSlice(argsVal)
		msg.Kwargs = fromIfaceMap(kwargsVal)
		msg.HasBlock = hasBlockByte != 0
	case TagReturn, TagNext:
		v, err := readValue(r, res)
		if err != nil {
			return Message{}, err
		}
		msg.Result = v
	case TagYield:
		v, err := readValue(r, res)
		if err != nil {
			return Message{}, err
		}
		msg.Values = fromIfaceSlice(v)
	case TagError:
		v, err := readValue(r, res)
		if err != nil {
			return Message{}, err
		}
		exc, ok := v.(*Exception)
		if !ok {
			return Message{}, &ProtocolError{Reason: "Error message payload was not an exception"}
		}
		msg.Exception = exc
	case TagThrow:
		throwTag, err := readLenPrefixedString(r)
		if err != nil {
			return Message{}, err
		}
		v, err := readValue(r, res)
		if err != nil {
			return Message{}, err
		}
		msg.ThrowTag = throwTag
		msg.ThrowValue = v
	case TagClose:
		if _, err := readValue(r, res); err != nil {
			return Message{}, err
		}
	}

	return msg, nil
}

func toIfaceSlice(v []interface{}) []interface{} {
	if v == nil {
		return []interface{}{}
	}
	return v
}

func toIfaceMap(v map[string]interface{}) map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v
}

func fromIfaceSlice(v interface{}) []interface{} {
	if v == nil {
		return nil
	}
	arr, _ := v.([]interface{})
	return arr
}

func fromIfaceMap(v interface{}) map[string]interface{} {
	if v == nil {
		return nil
	}
	m, _ := v.(map[string]interface{})
	return m
}
