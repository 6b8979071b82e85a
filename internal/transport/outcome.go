package transport

// Kind classifies how an exchange ended.
type Kind int

const (
	// Success: the agent answered 2xx.
	Success Kind = iota
	// ApplicationError: the agent ran but reported a failure with its own
	// diagnostic text.
	ApplicationError
	// TransportError: the agent could not be reached or its reply was unusable.
	TransportError
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case ApplicationError:
		return "application_error"
	case TransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of one exchange.
type Outcome struct {
	Kind Kind
	// Output is the agent's text for Success and ApplicationError.
	Output string
	// Cwd is the working directory the agent reported, empty if none.
	Cwd string
	// Message describes a TransportError.
	Message string
	// Status is the HTTP status code, zero when no response arrived.
	Status int
}

// Text returns what should be displayed for the outcome.
func (o Outcome) Text() string {
	if o.Kind == TransportError {
		return o.Message
	}
	return o.Output
}

// OK reports whether the agent answered successfully.
func (o Outcome) OK() bool { return o.Kind == Success }

// Reached reports whether the agent answered at all.
func (o Outcome) Reached() bool { return o.Kind != TransportError }
