// Package validate holds the request validation rules for the messaging API.
// Checks collect every violation rather than stopping at the first, so a
// caller sees all problems with a request at once.
package validate

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"br.com.tavares.disparo/internal/model"
)

const (
	MinNumberLength  = 10
	MaxNumberLength  = 15
	MaxMessageLength = 4096
	MaxBulkMessages  = 100
)

var numberPattern = regexp.MustCompile(`^\+?[0-9\s\-()]+$`)

type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// Number checks the shape of a raw phone number: digits with the usual
// punctuation, within length bounds. Country-code inference is not its job.
func Number(field string, raw string) []Violation {
	if raw == "" {
		return []Violation{{field, "phone number is required"}}
	}
	var violations []Violation
	if !numberPattern.MatchString(raw) {
		violations = append(violations, Violation{field, "phone number may only contain digits, spaces, parentheses and hyphens"})
	}
	if len(raw) < MinNumberLength {
		violations = append(violations, Violation{field, fmt.Sprintf("phone number must have at least %d characters", MinNumberLength)})
	}
	if len(raw) > MaxNumberLength {
		violations = append(violations, Violation{field, fmt.Sprintf("phone number must have at most %d characters", MaxNumberLength)})
	}
	return violations
}

func Body(field string, text string) []Violation {
	if text == "" {
		return []Violation{{field, "message must not be empty"}}
	}
	// The limit is in characters, not bytes; accented text must not lose
	// half its budget to encoding.
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return []Violation{{field, fmt.Sprintf("message must have at most %d characters", MaxMessageLength)}}
	}
	return nil
}

func SendRequest(req *model.SendRequest) []Violation {
	var violations []Violation
	violations = append(violations, Number("number", req.Number)...)
	violations = append(violations, Body("message", req.Message)...)
	return violations
}

// BulkSendRequest checks the whole batch up front: size bounds, every
// number, and that every item resolves to a non-empty text through its own
// message or the default. Nothing is dispatched if any item fails.
func BulkSendRequest(req *model.BulkSendRequest) []Violation {
	var violations []Violation

	if len(req.Messages) == 0 {
		violations = append(violations, Violation{"messages", "at least one message is required"})
	}
	if len(req.Messages) > MaxBulkMessages {
		violations = append(violations, Violation{"messages", fmt.Sprintf("at most %d messages per batch", MaxBulkMessages)})
	}
	if req.DefaultMessage != "" {
		violations = append(violations, Body("defaultMessage", req.DefaultMessage)...)
	}

	for i, item := range req.Messages {
		violations = append(violations, Number(fmt.Sprintf("messages[%d].number", i), item.Number)...)
		if item.Message != "" {
			violations = append(violations, Body(fmt.Sprintf("messages[%d].message", i), item.Message)...)
		} else if req.DefaultMessage == "" {
			violations = append(violations, Violation{
				Field:   fmt.Sprintf("messages[%d].message", i),
				Message: "item has no message and no defaultMessage was provided",
			})
		}
	}

	return violations
}
