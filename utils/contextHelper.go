package utils

import (
	"context"

	"github.com/screenbites/canteen_backend/appctx"
)

// Alias the shared context key type so existing code keeps working.
type contextKey = appctx.ContextKey

var (
	ContextKeyTheaterId     = appctx.ContextKeyTheaterId
	ContextKeyStaffId       = appctx.ContextKeyStaffId
	ContextKeyStaffName     = appctx.ContextKeyStaffName
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId

	ContextKeyIsAdmin         = appctx.ContextKeyIsAdmin
	ContextKeySkipTenantScope = appctx.ContextKeySkipTenantScope
)

func GetTheaterIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyTheaterId)
}

func GetStaffIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyStaffId)
}

func GetStaffNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyStaffName)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetTheaterIdInContext(ctx context.Context, theaterId string) context.Context {
	return appctx.Set(ctx, ContextKeyTheaterId, theaterId)
}

func SetStaffIdInContext(ctx context.Context, staffId int) context.Context {
	return appctx.Set(ctx, ContextKeyStaffId, staffId)
}

func SetStaffNameInContext(ctx context.Context, staffName string) context.Context {
	return appctx.Set(ctx, ContextKeyStaffName, staffName)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func GetIsAdminFromContext(ctx context.Context) (bool, bool) {
	return appctx.GetBool(ctx, ContextKeyIsAdmin)
}

func SetIsAdminInContext(ctx context.Context, isAdmin bool) context.Context {
	return appctx.Set(ctx, ContextKeyIsAdmin, isAdmin)
}

func GetSkipTenantScopeFromContext(ctx context.Context) (bool, bool) {
	return appctx.GetBool(ctx, ContextKeySkipTenantScope)
}

func SetSkipTenantScopeInContext(ctx context.Context, skip bool) context.Context {
	return appctx.Set(ctx, ContextKeySkipTenantScope, skip)
}
