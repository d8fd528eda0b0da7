package utils

import (
	"context"
	"fmt"

	"github.com/screenbites/canteen_backend/config"
)

/* DB fetching */

// fetch model from db
// (may return RecordNotFound)
func FetchSingleModel[T any](ctx context.Context, id int, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// fetch model from db
// (ctx's theater_id is used in query's WHERE, may return RecordNotFound)
func FetchModel[T any](ctx context.Context, theaterId string, id int, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("theater_id = ?", theaterId)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// fetch all models from db
// (ctx's theater_id is used in query's WHERE)
func FetchAllModels[T any](ctx context.Context, theaterId string, associations ...string) ([]*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("theater_id = ?", theaterId)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var results []*T
	err := dbCtx.Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ValidateResourceId checks that the row exists and belongs to the tenant.
func ValidateResourceId[T any](ctx context.Context, theaterId string, id int) error {
	db := config.GetDB()
	var model T
	var count int64
	if err := db.WithContext(ctx).Model(&model).
		Where("theater_id = ? AND id = ?", theaterId, id).
		Count(&count).Error; err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}

// ValidateUnique returns an error when another row of T (excluding excludeId)
// already holds the value in the given column.
func ValidateUnique[T any](ctx context.Context, theaterId string, column string, value any, excludeId int) error {
	db := config.GetDB()
	var model T
	var count int64
	dbCtx := db.WithContext(ctx).Model(&model).
		Where("theater_id = ?", theaterId).
		Where(fmt.Sprintf("%s = ?", column), value)
	if excludeId > 0 {
		dbCtx = dbCtx.Where("id != ?", excludeId)
	}
	if err := dbCtx.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return NewError(ErrConflict, "%s already exists", column)
	}
	return nil
}
