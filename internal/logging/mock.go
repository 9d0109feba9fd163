package logging

import "sync"

// MockLogger captures log entries for verification in tests.
type MockLogger struct {
	once sync.Once
	sink *entrySink

	pendingError  error
	pendingFields []Field
}

// ensureSink initializes the shared sink exactly once, so a MockLogger used
// from multiple goroutines stays race-free.
func (m *MockLogger) ensureSink() *entrySink {
	m.once.Do(func() {
		if m.sink == nil {
			m.sink = &entrySink{}
		}
	})
	return m.sink
}

type entrySink struct {
	mu      sync.Mutex
	entries []LogEntry
}

// LogEntry represents a single log entry captured by MockLogger.
type LogEntry struct {
	Level   string
	Message string
	Fields  []Field
	Error   error
}

func (m *MockLogger) log(level, msg string, fields []Field) {
	sink := m.ensureSink()
	sink.mu.Lock()
	defer sink.mu.Unlock()
	allFields := append(append([]Field{}, m.pendingFields...), fields...)
	sink.entries = append(sink.entries, LogEntry{
		Level:   level,
		Message: msg,
		Fields:  allFields,
		Error:   m.pendingError,
	})
}

func (m *MockLogger) Debug(msg string, fields ...Field) { m.log("DEBUG", msg, fields) }
func (m *MockLogger) Info(msg string, fields ...Field)  { m.log("INFO", msg, fields) }
func (m *MockLogger) Warn(msg string, fields ...Field)  { m.log("WARN", msg, fields) }
func (m *MockLogger) Error(msg string, fields ...Field) { m.log("ERROR", msg, fields) }
func (m *MockLogger) Fatal(msg string, fields ...Field) { m.log("FATAL", msg, fields) }

// WithError attaches an error to subsequent entries. Entries logged through
// the derived logger are still captured by the parent.
func (m *MockLogger) WithError(err error) Logger {
	return &MockLogger{sink: m.ensureSink(), pendingError: err, pendingFields: m.pendingFields}
}

// WithField attaches a field to subsequent entries.
func (m *MockLogger) WithField(key string, value interface{}) Logger {
	fields := append(append([]Field{}, m.pendingFields...), Field{Key: key, Value: value})
	return &MockLogger{sink: m.ensureSink(), pendingError: m.pendingError, pendingFields: fields}
}

// Entries returns a copy of all captured entries.
func (m *MockLogger) Captured() []LogEntry {
	sink := m.ensureSink()
	sink.mu.Lock()
	defer sink.mu.Unlock()
	return append([]LogEntry{}, sink.entries...)
}

// HasMessage reports whether any captured entry contains the given message.
func (m *MockLogger) HasMessage(msg string) bool {
	for _, e := range m.Captured() {
		if e.Message == msg {
			return true
		}
	}
	return false
}
