package source

import (
	"sync"

	"github.com/tinytelemetry/tailchart/internal/model"
	"github.com/tinytelemetry/tailchart/internal/tcpserver"
)

// TCPSource wraps a tcpserver.Server as a RecordSource.
type TCPSource struct {
	server   *tcpserver.Server
	stopOnce sync.Once
}

// NewTCPSource creates a TCPSource from an already-started TCP server.
func NewTCPSource(server *tcpserver.Server) *TCPSource {
	return &TCPSource{server: server}
}

func (t *TCPSource) Lines() <-chan model.IngestEnvelope { return t.server.Lines() }
func (t *TCPSource) Err() error                         { return nil }
func (t *TCPSource) Name() string                       { return "tcp" }

func (t *TCPSource) Stop() {
	t.stopOnce.Do(func() { _ = t.server.Stop() })
}
