package terminal

// routeInput forwards client messages to the terminal until the channel
// reports a disconnect or teardown begins. Writes are not queued; a child
// that reads slowly pushes back through the pty.
func (s *Session) routeInput(proc *Process) {
	defer s.recoverPanic("input router")

	for {
		msg, err := s.channel.Receive()
		if err != nil {
			s.shutdown(ReasonDisconnect, nil)
			return
		}
		if s.State() != StateRunning {
			return
		}

		data := msg.Bytes()
		if len(data) == 0 {
			continue
		}
		proc.Write(data)
		s.bytesIn.Add(int64(len(data)))
		s.observer.BytesRelayed(DirectionInput, len(data))
	}
}
