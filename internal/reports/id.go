package reports

import "github.com/google/uuid"

// IDProvider issues identifiers for newly drafted reports.
type IDProvider interface {
	NewID() (string, error)
}

// IDFunc adapts a function to IDProvider.
type IDFunc func() (string, error)

// NewID calls f.
func (f IDFunc) NewID() (string, error) {
	return f()
}

// NewUUIDProvider issues UUIDv7 identifiers; their time prefix keeps them ordered by creation.
func NewUUIDProvider() IDProvider {
	return IDFunc(func() (string, error) {
		generated, err := uuid.NewV7()
		if err != nil {
			return "", err
		}
		return generated.String(), nil
	})
}
