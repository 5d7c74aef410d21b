package actor

// testMsg is the canonical message type used throughout the package's tests.
type testMsg struct {
	data string
}

// newTestMsg creates a testMsg carrying the given payload.
func newTestMsg(data string) *testMsg {
	return &testMsg{data: data}
}

// messageMarker implements the sealed Message interface.
func (m *testMsg) messageMarker() {}

// MessageType implements Message.
func (m *testMsg) MessageType() string {
	return "testMsg"
}
