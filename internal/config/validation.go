package config

import (
	"github.com/go-playground/validator/v10"

	"github.com/edgard/pantrybot/internal/daily"
)

// validateDailyTime accepts "HH:MM" wall-clock values such as "14:00".
func validateDailyTime(fl validator.FieldLevel) bool {
	_, err := daily.Parse(fl.Field().String())
	return err == nil
}
