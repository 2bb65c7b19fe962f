package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"contentops/internal/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var ErrInvalidRequest = errors.New("invalid request")

var scheduleTimeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}$`)

type scheduleRequest struct {
	DriveID  string
	Platform string
	When     string
	Revoke   bool
}

func validateScheduleRequest(ctx context.Context, req scheduleRequest) error {
	err := validation.ValidateStructWithContext(ctx, &req,
		validation.Field(&req.DriveID, validation.Required),
		validation.Field(&req.Platform, validation.Required),
		validation.Field(&req.When,
			validation.When(!req.Revoke, validation.Required, validation.Match(scheduleTimeRe)),
		),
	)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, err.Error())
	}
	return nil
}

// NormalizeScheduleTime turns the picker format YYYY-MM-DDTHH:mm into the
// sheet format YYYY-MM-DD HH:mm.
func NormalizeScheduleTime(s string) string {
	return strings.Replace(strings.TrimSpace(s), "T", " ", 1)
}

// parseSyncPlatform accepts only platforms that have a publishing sheet.
func parseSyncPlatform(s string) (models.Platform, error) {
	p, err := models.ParsePlatform(s)
	if err != nil {
		return "", fmt.Errorf("%q: %w", s, err)
	}
	if _, err := p.DBSheet(); err != nil {
		return "", fmt.Errorf("%q: %w", s, err)
	}
	return p, nil
}
