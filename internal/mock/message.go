package mock

// Message is a simple core.Message implementation for testing.
type Message struct {
	Id   string
	Body []byte
	Meta map[string]string
}

func (m *Message) ID() string                  { return m.Id }
func (m *Message) Content() []byte             { return m.Body }
func (m *Message) Metadata() map[string]string { return m.Meta }
