package application

import "context"

type Repository interface {
	Create(ctx context.Context, a *Application) error

	// List returns every live application, newest submission first.
	List(ctx context.Context) ([]Application, error)

	// Get by public application_id
	GetByApplicationID(ctx context.Context, applicationID string) (*Application, error)

	// Same as GetByApplicationID but row-locked for the surrounding tx
	GetByApplicationIDForUpdate(ctx context.Context, applicationID string) (*Application, error)

	Save(ctx context.Context, a *Application) error
}
