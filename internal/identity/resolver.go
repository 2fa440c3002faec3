package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"

	"github.com/idest-edu/assignment-gateway/internal/config"
)

var ErrUnauthenticated = errors.New("could not resolve submitter identity")

// Resolver turns a bearer token into the submitter's user id. The workflow
// receives identity through this capability at construction time instead of
// reading ambient storage.
type Resolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

type casdoorResolver struct {
	client *casdoorsdk.Client
}

func NewCasdoorResolver(cfg *config.Config) Resolver {
	client := casdoorsdk.NewClient(
		cfg.CasdoorEndpoint,
		cfg.CasdoorClientID,
		cfg.CasdoorClientSecret,
		cfg.CasdoorCertificate,
		cfg.CasdoorOrganization,
		cfg.CasdoorApplication,
	)
	return &casdoorResolver{client: client}
}

func (r *casdoorResolver) Resolve(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthenticated
	}

	claims, err := r.client.ParseJwtToken(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.User.Id == "" {
		return "", ErrUnauthenticated
	}
	return claims.User.Id, nil
}

// StaticResolver maps tokens to user ids directly; for tests and local
// development without an identity provider.
type StaticResolver map[string]string

func (r StaticResolver) Resolve(_ context.Context, token string) (string, error) {
	userID, ok := r[token]
	if !ok {
		return "", ErrUnauthenticated
	}
	return userID, nil
}
