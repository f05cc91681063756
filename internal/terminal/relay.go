package terminal

import "go.uber.org/zap"

// relayOutput drains the terminal until end of stream or stop. Each chunk is
// handed to deliverOutput instead of being sent directly, so the channel only
// ever sees one sending goroutine and chunks keep their order. Closing the
// outbox tells the writer that no more output will come.
func (s *Session) relayOutput(proc *Process) {
	defer s.workers.Done()
	defer close(s.outbox)
	defer s.recoverPanic("output relay")

	for !s.stopped.Load() {
		chunk := proc.Read(ReadChunkSize)
		if len(chunk) == 0 {
			return
		}

		select {
		case s.outbox <- chunk:
		case <-s.stop:
			return
		}
	}
}

// deliverOutput is the channel's writer. Once the relay has finished and
// everything it produced has been sent, the session ends with ReasonEOF.
// Chunks arriving after teardown began are dropped.
func (s *Session) deliverOutput() {
	defer s.workers.Done()
	defer s.recoverPanic("output writer")

	for {
		select {
		case chunk, ok := <-s.outbox:
			if !ok {
				s.shutdown(ReasonEOF, nil)
				return
			}
			if s.State() != StateRunning {
				continue
			}
			if err := s.channel.Send(chunk); err != nil {
				s.logger.Debug("Failed to forward terminal output", zap.Error(err))
				s.shutdown(ReasonSendFailed, nil)
				return
			}
			s.bytesOut.Add(int64(len(chunk)))
			s.observer.BytesRelayed(DirectionOutput, len(chunk))
		case <-s.stop:
			return
		}
	}
}
