package threat

import (
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRequest reports an AnalysisRequest that violates its invariants.
var ErrInvalidRequest = errors.New("threat: invalid analysis request")

// Kind is the category of submitted content.
type Kind string

// Content kinds.
const (
	KindURL   Kind = "url"
	KindEmail Kind = "email"
	KindSMS   Kind = "sms"
	KindVideo Kind = "video"
	KindChat  Kind = "chat"
)

// ParseKind maps a case-insensitive name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindURL, KindEmail, KindSMS, KindVideo, KindChat:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown content kind %q", ErrInvalidRequest, s)
}

// Textual reports whether k is analyzed through the structured JSON path.
func (k Kind) Textual() bool {
	return k == KindURL || k == KindEmail || k == KindSMS
}

// Media is a binary attachment. URL is an https reference resolved before building.
type Media struct {
	Data     []byte
	MIMEType string `validate:"omitempty,videotype"`
	URL      string `validate:"omitempty,https_url"`
}

// Resolved reports whether the bytes are present.
func (m *Media) Resolved() bool { return m != nil && len(m.Data) > 0 }

// AnalysisRequest is one user submission.
type AnalysisRequest struct {
	Kind  Kind   `validate:"required,oneof=url email sms video chat"`
	Text  string `validate:"max=1048576"`
	Media *Media
	Notes string `validate:"max=4096"` // optional context for video submissions
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("videotype", func(fl validator.FieldLevel) bool {
		return IsVideoType(fl.Field().String())
	})
	_ = v.RegisterValidation("https_url", func(fl validator.FieldLevel) bool {
		return strings.HasPrefix(fl.Field().String(), "https://")
	})
	v.RegisterStructValidation(requestRules, AnalysisRequest{})
	return v
}

func requestRules(sl validator.StructLevel) {
	r := sl.Current().Interface().(AnalysisRequest)
	if r.Kind != KindVideo {
		if strings.TrimSpace(r.Text) == "" {
			sl.ReportError(r.Text, "Text", "Text", "required", "")
		}
		return
	}
	switch {
	case r.Media == nil || (len(r.Media.Data) == 0 && r.Media.URL == ""):
		sl.ReportError(r.Media, "Media", "Media", "required", "")
	case len(r.Media.Data) > 0 && r.Media.MIMEType == "":
		sl.ReportError(r.Media.MIMEType, "MIMEType", "MIMEType", "required", "")
	}
}

// Validate checks the request invariants: non-empty text for textual kinds; for video,
// media bytes with a concrete video/* type, or an https URL to fetch them from.
func (r AnalysisRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// IsVideoType reports whether s is a concrete "video/<subtype>" media type (parameters allowed).
func IsVideoType(s string) bool {
	mt, _, err := mime.ParseMediaType(s)
	if err != nil {
		return false
	}
	kind, sub, ok := strings.Cut(mt, "/")
	return ok && kind == "video" && sub != "" && sub != "*"
}
