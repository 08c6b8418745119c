package domain

import "context"

// Service writes and reads audit records. Implementations must never
// fail a business operation because an audit write failed.
type Service interface {
	AuditLog(ctx context.Context, actor ActorType, actorID string, action string, targetType string, targetID *string, metadata map[string]any) error
	List(ctx context.Context, filter ListFilter) ([]*AuditLog, error)
}
