package metrics

// Component label values used by app-level metrics.
const (
	ComponentKafka      = "kafka"
	ComponentSink       = "sink"
	ComponentSource     = "source"
	ComponentCheckpoint = "checkpoint"
	ComponentProcessor  = "processor"
)
