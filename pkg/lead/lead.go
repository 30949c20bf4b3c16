// Package lead validates captured sales leads and delivers them to a CRM
// webhook in the background.
package lead

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/papercomputeco/thinkstream/pkg/storage"
)

// Lead sources.
const (
	SourceForm    = "form"
	SourceChatbot = "chatbot"
)

// Lead is a prospect submitted through the lead form or collected by the
// chatbot.
type Lead struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Company  string `json:"company,omitempty"`
	Role     string `json:"role,omitempty"`
	Message  string `json:"message,omitempty"`
	Source   string `json:"source,omitempty"`
	LeadType string `json:"leadType,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the required fields and the email format.
func (l *Lead) Validate() error {
	if l == nil {
		return errors.New("lead is required")
	}

	l.Name = strings.TrimSpace(l.Name)
	l.Email = strings.TrimSpace(l.Email)

	err := validate.Struct(l)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("lead validation error: %w", err)
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			problems = append(problems, strings.ToLower(fe.Field())+" is required")
		case "email":
			problems = append(problems, "email is invalid")
		default:
			problems = append(problems, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return &ValidationError{Problems: problems}
}

// ValidationError lists what is wrong with a lead.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid lead: " + strings.Join(e.Problems, "; ")
}

// Record converts l into a storage record.
func (l *Lead) Record(now time.Time) *storage.Lead {
	return &storage.Lead{
		ID:        uuid.NewString(),
		Name:      l.Name,
		Email:     l.Email,
		Company:   l.Company,
		Role:      l.Role,
		Message:   l.Message,
		Source:    l.Source,
		LeadType:  l.LeadType,
		CreatedAt: now.UTC(),
	}
}
