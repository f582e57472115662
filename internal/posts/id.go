package posts

import "github.com/google/uuid"

// UUIDProvider generates UUIDv4 post identifiers.
type UUIDProvider struct{}

// NewUUIDProvider returns the production id provider.
func NewUUIDProvider() UUIDProvider {
	return UUIDProvider{}
}

// NewID returns a fresh identifier.
func (UUIDProvider) NewID() (string, error) {
	return uuid.NewString(), nil
}
