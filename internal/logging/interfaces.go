package logging

// Field represents a structured logging field.
type Field struct {
	Key   string
	Value interface{}
}

// Logger defines the interface for structured logging used throughout
// the bus: connection lifecycle, transaction dispatch, and codec errors.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a child logger that always includes the given fields.
	With(fields ...Field) Logger

	// Sync flushes any buffered log entries.
	Sync() error
}

// StringField creates a string field.
func StringField(key, value string) Field {
	return Field{Key: key, Value: value}
}

// IntField creates an integer field.
func IntField(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// ErrorField creates an error field.
func ErrorField(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// NameField creates a bound-object Name field.
func NameField(name string) Field {
	return Field{Key: "name", Value: name}
}

// TransactionField creates a transaction id field.
func TransactionField(id int64) Field {
	return Field{Key: "transaction_id", Value: id}
}
