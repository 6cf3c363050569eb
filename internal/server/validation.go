package server

import (
	"errors"
	"fmt"
	"sync"
	"unicode"
	"unicode/utf8"

	"spy-game/internal/db"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var validatorOnce sync.Once

func registerValidators() {
	validatorOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = engine.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return isSafeText(db.NormalizeUsername(fl.Field().String()))
		})
		_ = engine.RegisterValidation("roomcode", func(fl validator.FieldLevel) bool {
			return db.IsRoomCode(fl.Field().String())
		})
	})
}

// validateUsername normalizes whitespace and enforces the configured length.
func validateUsername(name string, maxLen int) (string, error) {
	trimmed := db.NormalizeUsername(name)
	if trimmed == "" {
		return "", errors.New("username is required")
	}
	if maxLen > 0 && utf8.RuneCountInString(trimmed) > maxLen {
		return "", fmt.Errorf("username must be %d characters or fewer", maxLen)
	}
	if !isSafeText(trimmed) {
		return "", errors.New("username contains unsupported characters")
	}
	return trimmed, nil
}

// isSafeText accepts letters and digits of any script plus a little punctuation.
func isSafeText(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		switch r {
		case ' ', '-', '_', '\'', '.':
			continue
		default:
			return false
		}
	}
	return true
}
