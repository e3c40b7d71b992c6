package sink

// Config describes the Redis sink shared by the checkpoint store and the block
// relay. URL accepts redis:// and rediss:// endpoints including credentials
// and database index. Channel is the list blocks are pushed onto.
type Config struct {
	URL                string `validate:"required,url"`
	Channel            string `validate:"required"`
	DialTimeoutSeconds int    `validate:"gte=0"`
	OpTimeoutSeconds   int    `validate:"gte=0"`
	MaxRetries         int    `validate:"gte=0"`
	ConnectAttempts    int    `validate:"gte=0"`
}
