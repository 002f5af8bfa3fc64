package echoserver

// Handler receives session lifecycle and data callbacks. All callbacks for a
// session run on the server's scheduler, except OnClose when the session is
// closed from another goroutine (Session.Close, Server.Stop).
type Handler interface {
	// OnOpen is called once, after the session is registered and before its
	// first read.
	OnOpen(s *Session)

	// OnData is called for every chunk received. data is only valid during
	// the call; copy it to keep it.
	OnData(s *Session, data []byte)

	// OnClose is called once when the session ends. err is nil when the peer
	// closed the connection or the session was closed locally.
	OnClose(s *Session, err error)
}

// EchoHandler sends every received chunk back to its sender.
type EchoHandler struct{}

// OnOpen implements Handler.
func (EchoHandler) OnOpen(*Session) {}

// OnData implements Handler.
func (EchoHandler) OnData(s *Session, data []byte) {
	_ = s.Send(append([]byte(nil), data...))
}

// OnClose implements Handler.
func (EchoHandler) OnClose(*Session, error) {}
