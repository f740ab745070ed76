package port

import (
	"context"
	"errors"

	"github.com/yuanzhaoK/admin-platform-auth/internal/core/domain"
)

var (
	// ErrDirectoryAuthFailed indicates the directory rejected the supplied credentials.
	ErrDirectoryAuthFailed = errors.New("directory: authentication failed")
	// ErrDirectoryNotFound indicates the requested record does not exist.
	ErrDirectoryNotFound = errors.New("directory: record not found")
	// ErrDirectoryUnavailable indicates the directory could not be reached.
	ErrDirectoryUnavailable = errors.New("directory: unavailable")
)

// Directory is the external user/member directory the authority trusts for
// credential verification and profile lookups. Administrative and member
// accounts live in separate namespaces with different enrichment rules.
type Directory interface {
	AuthenticateWithPassword(ctx context.Context, identity, password, namespace string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
}
