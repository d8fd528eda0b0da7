package utils

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/screenbites/canteen_backend/config"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

var CountryCode = "IN"

func IsValidEmail(email string) bool {
	// Basic email validation regex pattern
	pattern := `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	regex := regexp.MustCompile(pattern)
	return regex.MatchString(email)
}

func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return err // Phone number is invalid
	}

	if !libphonenumber.IsValidNumber(p) {
		return fmt.Errorf("phone number is not valid")
	}

	return nil // Phone number is valid for the specified country code
}

var nonDigitRe = regexp.MustCompile(`\D`)

// NormalizePhoneDigits strips everything but digits. "+91 98765 43210" -> "919876543210".
func NormalizePhoneDigits(phone string) string {
	return nonDigitRe.ReplaceAllString(phone, "")
}

// PhonesMatch compares two phone numbers on their last ten digits, which
// tolerates country-code and formatting differences on stored numbers.
func PhonesMatch(a, b string) bool {
	da := NormalizePhoneDigits(a)
	db := NormalizePhoneDigits(b)
	if len(da) < 10 || len(db) < 10 {
		return da != "" && da == db
	}
	return da[len(da)-10:] == db[len(db)-10:]
}

func ProcessValidationErrors(err error) map[string]string {

	validationErrors := err.(validator.ValidationErrors)

	errorResponse := make(map[string]string)

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// ParseBoolLoose coerces the string/number truthiness the legacy clients
// send ("1", "true", "yes", "0", "") into a strict bool.
func ParseBoolLoose(v string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}

// ZeroPad renders n with at least width digits: ZeroPad(21, 4) -> "0021".
// Counts above the width widen naturally instead of truncating.
func ZeroPad(n int64, width int) string {
	return fmt.Sprintf("%0*d", width, n)
}

// ConvertToDate truncates t to day precision in the given timezone.
func ConvertToDate(t time.Time, timezone string) (time.Time, error) {
	if timezone == "" {
		timezone = "Asia/Kolkata"
	}

	location, err := time.LoadLocation(timezone)
	if err != nil {
		return t, err
	}
	localTime := t.In(location)

	dateOnly := time.Date(localTime.Year(), localTime.Month(), localTime.Day(), 0, 0, 0, 0, location)
	return dateOnly, nil
}

// DateOnlyUTC truncates t to day precision in UTC. Ledger rows are keyed
// by this value so day identity does not depend on server timezone.
func DateOnlyUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDecimal converts a string to a decimal.Decimal value.
func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}

	dec, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}

	return dec, nil
}

func DereferencePtr[T any](ptr *T) T {
	var zero T
	if ptr == nil {
		return zero
	}
	return *ptr
}

// TheaterLock serializes mutating work per tenant across instances.
// The lock auto-expires after 30s so a crashed holder cannot wedge the tenant.
func TheaterLock(ctx context.Context, theaterId string, lockType string, moduleName string, functionName string) (*redislock.Lock, error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		// Avoid nil-pointer panics when Redis lock isn't initialized yet.
		config.LogError(logger, moduleName, functionName, "Redis lock not initialized", theaterId, errors.New("redis lock is nil"))
		return nil, NewError(ErrUnavailable, "service not ready (redis lock not initialized)")
	}
	lockKey := fmt.Sprintf("%s:%s", lockType, theaterId)
	// Retry briefly instead of failing the request on the first collision.
	backoff := redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, &redislock.Options{RetryStrategy: backoff})
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock for theaterId", theaterId, err)
		return nil, NewError(ErrConflict, "could not obtain lock for theaterId")
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock for theaterId", theaterId, err)
		return nil, err
	}
	return lock, nil
}

func ReleaseTheaterLock(ctx context.Context, lock *redislock.Lock) {
	if lock == nil {
		return
	}
	_ = lock.Release(ctx)
}
