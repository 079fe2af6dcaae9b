package operation

// Broadcast is the content-free wake-up used to confirm a passive agent.
type Broadcast struct{}

// Ack is the report a passive agent sends once it has responded.
type Ack struct{}

// Fired reports whether a spiking agent crossed threshold this generation.
type Fired bool

const (
	FiredNo  Fired = false
	FiredYes Fired = true
)

func (f Fired) String() string {
	if f {
		return "yes"
	}
	return "no"
}
