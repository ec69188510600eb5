package authclient

// Plugin extends a Client. Plugins are identified by ID; registering two
// plugins with the same ID keeps the first.
type Plugin interface {
	ID() string
}

type additionalFields[F any] struct{}

func (additionalFields[F]) ID() string { return "additional-fields" }

// AdditionalFields declares the extra user fields the authentication
// service attaches to sessions. It changes nothing at runtime: the field
// shape is carried by the Client's type parameter, and the plugin only
// records that the contract was requested.
func AdditionalFields[F any]() Plugin {
	return additionalFields[F]{}
}
