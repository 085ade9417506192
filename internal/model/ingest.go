package model

// IngestEnvelope carries one raw payload with source metadata.
// It is the transport contract between record sources and processing.
// Topic, Partition and Offset are diagnostic only.
type IngestEnvelope struct {
	Source    string
	Line      string
	Topic     string
	Partition int32
	Offset    int64
}
