package validation

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ct-protocol-manual/internal/models"
	"github.com/ct-protocol-manual/internal/navigation"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// AllowedImageTypes lists the sniffed content types accepted for uploads
var AllowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
}

const maxNameLength = 200

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Validator provides validation methods for submitted forms
type Validator struct {
	maxImageSize   int64
	minPasswordLen int
}

// NewValidator creates a new validator instance
func NewValidator(maxImageSize int64, minPasswordLen int) *Validator {
	return &Validator{
		maxImageSize:   maxImageSize,
		minPasswordLen: minPasswordLen,
	}
}

// ValidateDisease validates a disease form. Name and description are required.
func (v *Validator) ValidateDisease(d *models.Disease) []ValidationError {
	var errors []ValidationError

	if isBlank(d.Name) {
		errors = append(errors, ValidationError{Field: "name", Message: "name is required"})
	} else if utf8.RuneCountInString(d.Name) > maxNameLength {
		errors = append(errors, ValidationError{Field: "name", Message: fmt.Sprintf("name must be at most %d characters", maxNameLength)})
	}

	if isBlankRichText(d.Description) {
		errors = append(errors, ValidationError{Field: "description", Message: "description is required"})
	}

	errors = append(errors, v.ValidateImage("description_image", d.DescriptionImage)...)
	errors = append(errors, v.ValidateImage("scan.image", d.Scan.Image)...)
	errors = append(errors, v.ValidateImage("contrast.image", d.Contrast.Image)...)
	errors = append(errors, v.ValidateImage("post_processing.image", d.PostProcessing.Image)...)

	return errors
}

// ValidateSearchTerm bounds the disease search term. An empty term is valid.
func (v *Validator) ValidateSearchTerm(term string) []ValidationError {
	if n := utf8.RuneCountInString(term); n > navigation.MaxTermLength {
		return []ValidationError{{
			Field:   "term",
			Message: fmt.Sprintf("search term must be at most %d characters", navigation.MaxTermLength),
			Value:   n,
		}}
	}
	return nil
}

// ValidateNotice validates a notice form. Title and body are required.
func (v *Validator) ValidateNotice(n *models.Notice) []ValidationError {
	var errors []ValidationError

	if isBlank(n.Title) {
		errors = append(errors, ValidationError{Field: "title", Message: "title is required"})
	} else if utf8.RuneCountInString(n.Title) > maxNameLength {
		errors = append(errors, ValidationError{Field: "title", Message: fmt.Sprintf("title must be at most %d characters", maxNameLength)})
	}

	if isBlankRichText(n.Body) {
		errors = append(errors, ValidationError{Field: "body", Message: "body is required"})
	}

	errors = append(errors, v.ValidateImage("image", n.Image)...)

	return errors
}

// ValidateProtocol validates a protocol form. Category, title and content are required.
func (v *Validator) ValidateProtocol(p *models.Protocol) []ValidationError {
	var errors []ValidationError

	if p.Category == "" {
		errors = append(errors, ValidationError{Field: "category", Message: "category is required"})
	} else if !models.ValidCategories[p.Category] {
		errors = append(errors, ValidationError{
			Field:   "category",
			Message: "invalid category, must be one of: " + strings.Join(models.ProtocolCategories, ", "),
			Value:   p.Category,
		})
	}

	if isBlank(p.Title) {
		errors = append(errors, ValidationError{Field: "title", Message: "title is required"})
	} else if utf8.RuneCountInString(p.Title) > maxNameLength {
		errors = append(errors, ValidationError{Field: "title", Message: fmt.Sprintf("title must be at most %d characters", maxNameLength)})
	}

	if isBlankRichText(p.Content) {
		errors = append(errors, ValidationError{Field: "content", Message: "content is required"})
	}

	errors = append(errors, v.ValidateImage("image", p.Image)...)

	return errors
}

// ValidateNewUser validates the admin console's create-user form
func (v *Validator) ValidateNewUser(in *models.NewUserInput) []ValidationError {
	var errors []ValidationError

	if isBlank(in.Name) {
		errors = append(errors, ValidationError{Field: "name", Message: "name is required"})
	}

	if isBlank(in.Email) {
		errors = append(errors, ValidationError{Field: "email", Message: "email is required"})
	} else if !emailRegex.MatchString(strings.TrimSpace(in.Email)) {
		errors = append(errors, ValidationError{Field: "email", Message: "invalid email format", Value: in.Email})
	}

	if in.Password == "" {
		errors = append(errors, ValidationError{Field: "password", Message: "password is required"})
	} else if utf8.RuneCountInString(in.Password) < v.minPasswordLen {
		errors = append(errors, ValidationError{Field: "password", Message: fmt.Sprintf("password must be at least %d characters", v.minPasswordLen)})
	}

	if in.PasswordConfirm != in.Password {
		errors = append(errors, ValidationError{Field: "password_confirm", Message: "passwords do not match"})
	}

	return errors
}

// ValidateImage checks an optional base64 image: decodable, within the size
// limit and sniffed as PNG or JPEG. A data URL prefix is accepted.
func (v *Validator) ValidateImage(field, encoded string) []ValidationError {
	if encoded == "" {
		return nil
	}

	data, err := DecodeImage(encoded)
	if err != nil {
		return []ValidationError{{Field: field, Message: "image must be base64 encoded"}}
	}

	if int64(len(data)) > v.maxImageSize {
		return []ValidationError{{
			Field:   field,
			Message: fmt.Sprintf("image exceeds maximum size of %d bytes", v.maxImageSize),
			Value:   len(data),
		}}
	}

	contentType := http.DetectContentType(data)
	if !AllowedImageTypes[contentType] {
		return []ValidationError{{Field: field, Message: "image must be PNG or JPEG", Value: contentType}}
	}

	return nil
}

// DecodeImage decodes a base64 image, stripping a data URL prefix if present
func DecodeImage(encoded string) ([]byte, error) {
	s := strings.TrimSpace(encoded)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	return base64.StdEncoding.DecodeString(s)
}

// NormalizeImage strips a data URL prefix so images are stored as bare base64
func NormalizeImage(encoded string) string {
	s := strings.TrimSpace(encoded)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			return s[i+1:]
		}
	}
	return s
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

var tagRegex = regexp.MustCompile(`<[^>]*>`)

// isBlankRichText treats editor output with no visible text, such as "<p><br></p>", as empty
func isBlankRichText(s string) bool {
	text := tagRegex.ReplaceAllString(s, "")
	text = strings.ReplaceAll(text, "&nbsp;", "")
	return isBlank(text)
}
