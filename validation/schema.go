// Package validation holds the single rule set for posts and accounts. The
// server validates with it before touching storage and the client validates
// with it before sending a request, so the two layers cannot drift.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/cppla/newsboard/apperr"
	"github.com/cppla/newsboard/models"
)

// Schema validates request payloads against a category list.
type Schema struct {
	v          *validator.Validate
	categories []string
}

// New builds a schema that accepts exactly the given category names.
func New(categories []string) *Schema {
	cats := slices.Clone(categories)
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return slices.Contains(cats, fl.Field().String())
	})
	return &Schema{v: v, categories: cats}
}

// Categories returns the accepted category names.
func (s *Schema) Categories() []string {
	return slices.Clone(s.categories)
}

// HasCategory reports whether name is an accepted category.
func (s *Schema) HasCategory(name string) bool {
	return slices.Contains(s.categories, name)
}

// PostCreate trims req in place and validates it.
func (s *Schema) PostCreate(req *models.PostCreateRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	req.Excerpt = strings.TrimSpace(req.Excerpt)
	req.Category = strings.TrimSpace(req.Category)
	req.Tags = trimTags(req.Tags)
	return s.check(req, 40020, "Post creation failed")
}

// PostUpdate trims req in place and validates it. An update must change
// at least one field.
func (s *Schema) PostUpdate(req *models.PostUpdateRequest) error {
	if req.IsEmpty() {
		return apperr.Validation(40030, "At least one field must be provided for update")
	}
	trimPtr(req.Title)
	trimPtr(req.Content)
	trimPtr(req.Excerpt)
	trimPtr(req.Category)
	if req.Tags != nil {
		tags := trimTags(*req.Tags)
		req.Tags = &tags
	}
	return s.check(req, 40031, "Post update failed")
}

// Register validates a registration form.
func (s *Schema) Register(req *models.RegisterRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	return s.check(req, 40001, "Registration failed")
}

// Login validates a login form.
func (s *Schema) Login(req *models.LoginRequest) error {
	req.Email = strings.TrimSpace(req.Email)
	return s.check(req, 40002, "Login failed")
}

// UserUpdate validates an account update.
func (s *Schema) UserUpdate(req *models.UserUpdateRequest) error {
	trimPtr(req.Email)
	if req.Email == nil && req.Password == nil {
		return apperr.Validation(40003, "No data to update")
	}
	return s.check(req, 40004, "User update failed")
}

func (s *Schema) check(v any, code int, prefix string) error {
	err := s.v.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation(code, prefix+": "+err.Error())
	}
	fields := make([]apperr.FieldError, 0, len(verrs))
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := s.message(fe)
		fields = append(fields, apperr.FieldError{Field: fe.Field(), Message: msg})
		msgs = append(msgs, msg)
	}
	return apperr.Validation(code, prefix+": "+strings.Join(msgs, ", "), fields...)
}

func (s *Schema) message(fe validator.FieldError) string {
	label := humanize(fe.Field())
	unit := "characters"
	if fe.Kind() == reflect.Slice {
		unit = "items"
	}
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "min":
		return fmt.Sprintf("%s must have at least %s %s", label, fe.Param(), unit)
	case "max":
		return fmt.Sprintf("%s cannot exceed %s %s", label, fe.Param(), unit)
	case "category":
		return fmt.Sprintf("%s must be one of: %s", label, strings.Join(s.categories, ", "))
	case "email":
		return "Invalid email format"
	case "eqfield":
		return "Passwords do not match"
	}
	return label + " is invalid"
}

// humanize turns "confirmPassword" or "is_published" into a sentence label.
func humanize(field string) string {
	var b strings.Builder
	for i, r := range field {
		switch {
		case r == '_':
			b.WriteRune(' ')
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteRune(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

func trimTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, strings.TrimSpace(t))
	}
	return out
}
