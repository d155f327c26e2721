package content

import (
	"errors"
	"strings"

	"civilsite-backend-go/internal/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Input types list exactly the writable columns of each entity.
// Anything else a client sends (ids, nested objects) is dropped by the decoder.

type HeroInput struct {
	Title    *string `json:"title"`
	Subtitle *string `json:"subtitle"`
	CTALabel *string `json:"ctaLabel"`
	ImageURL *string `json:"imageUrl"`
}

func (in HeroInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.NilOrNotEmpty.Error("title cannot be blank"), validation.Length(0, 200)),
	)
}

func (in HeroInput) apply(h *models.Hero) {
	setString(&h.Title, in.Title)
	setString(&h.Subtitle, in.Subtitle)
	setString(&h.CTALabel, in.CTALabel)
	if in.ImageURL != nil {
		h.ImageURL = optional(*in.ImageURL)
	}
}

type AboutInput struct {
	Title   *string   `json:"title"`
	Body    *string   `json:"body"`
	Mission *string   `json:"mission"`
	Vision  *string   `json:"vision"`
	Values  *[]string `json:"values"`
}

func (in AboutInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.NilOrNotEmpty.Error("title cannot be blank")),
		validation.Field(&in.Values, validation.By(noBlankEntries)),
	)
}

func (in AboutInput) apply(a *models.About) {
	setString(&a.Title, in.Title)
	setString(&a.Body, in.Body)
	setString(&a.Mission, in.Mission)
	setString(&a.Vision, in.Vision)
	if in.Values != nil {
		values := make([]string, 0, len(*in.Values))
		for _, v := range *in.Values {
			values = append(values, strings.TrimSpace(v))
		}
		a.Values = values
	}
}

type ContactInput struct {
	Title    *string `json:"title"`
	Subtitle *string `json:"subtitle"`
	Address  *string `json:"address"`
	Phone    *string `json:"phone"`
	Email    *string `json:"email"`
	Hours    *string `json:"hours"`
}

func (in ContactInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.NilOrNotEmpty.Error("title cannot be blank")),
		validation.Field(&in.Email, validation.When(!blank(in.Email), is.EmailFormat.Error("email must be a valid address"))),
	)
}

func (in ContactInput) apply(c *models.Contact) {
	setString(&c.Title, in.Title)
	setString(&c.Subtitle, in.Subtitle)
	setString(&c.Address, in.Address)
	setString(&c.Phone, in.Phone)
	setString(&c.Email, in.Email)
	setString(&c.Hours, in.Hours)
}

type CategoryInput struct {
	Name *string `json:"name"`
}

func (in CategoryInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required.Error("name is required"), validation.Length(1, 120)),
	)
}

type ProjectInput struct {
	Title          *string       `json:"title"`
	Description    *string       `json:"description"`
	ImageURL       *string       `json:"imageUrl"`
	Client         *string       `json:"client"`
	CompletionDate *string       `json:"completionDate"`
	CategoryID     *models.RefID `json:"categoryId"`
}

func (in ProjectInput) ValidateCreate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required.Error("title is required")),
		validation.Field(&in.CategoryID, validation.Required.Error("categoryId is required")),
		validation.Field(&in.CompletionDate, validation.Date("2006-01-02").Error("completionDate must be YYYY-MM-DD")),
	)
}

func (in ProjectInput) ValidateUpdate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.NilOrNotEmpty.Error("title cannot be blank")),
		validation.Field(&in.CategoryID, validation.NilOrNotEmpty.Error("categoryId must be a positive integer id")),
		validation.Field(&in.CompletionDate, validation.Date("2006-01-02").Error("completionDate must be YYYY-MM-DD")),
	)
}

func (in ProjectInput) apply(p *models.Project) {
	setString(&p.Title, in.Title)
	setString(&p.Description, in.Description)
	setString(&p.ImageURL, in.ImageURL)
	if in.Client != nil {
		p.Client = optional(*in.Client)
	}
	if in.CompletionDate != nil {
		p.CompletionDate = optional(*in.CompletionDate)
	}
	if in.CategoryID != nil {
		p.CategoryID = in.CategoryID.Int64()
	}
}

type ServiceInput struct {
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Icon        *string            `json:"icon"`
	SubServices *[]SubServiceInput `json:"subServices"`
}

func (in ServiceInput) ValidateCreate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required.Error("title is required")),
		validation.Field(&in.SubServices),
	)
}

func (in ServiceInput) ValidateUpdate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.NilOrNotEmpty.Error("title cannot be blank")),
		validation.Field(&in.SubServices),
	)
}

func (in ServiceInput) apply(svc *models.Service) {
	setString(&svc.Title, in.Title)
	setString(&svc.Description, in.Description)
	setString(&svc.Icon, in.Icon)
}

// ServiceBulkItem is one record of a bulk service save.
type ServiceBulkItem struct {
	ID models.RefID `json:"id"`
	ServiceInput
}

type SubServiceInput struct {
	ServiceID   *models.RefID `json:"serviceId"`
	Title       *string       `json:"title"`
	Description *string       `json:"description"`
	ImageURL    *string       `json:"imageUrl"`
}

// Validate checks the fields every stored sub-service needs. The owning
// service is checked separately since nested records inherit it.
func (in SubServiceInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required.Error("title is required")),
	)
}

func (in SubServiceInput) ValidateUpdate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.NilOrNotEmpty.Error("title cannot be blank")),
		validation.Field(&in.ServiceID, validation.NilOrNotEmpty.Error("serviceId must be a positive integer id")),
	)
}

func (in SubServiceInput) apply(sub *models.SubService) {
	setString(&sub.Title, in.Title)
	setString(&sub.Description, in.Description)
	if in.ImageURL != nil {
		sub.ImageURL = optional(*in.ImageURL)
	}
	if in.ServiceID != nil {
		sub.ServiceID = in.ServiceID.Int64()
	}
}

type PartnerInput struct {
	LogoURL *string `json:"logoUrl"`
}

func (in PartnerInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.LogoURL, validation.Required.Error("logoUrl is required")),
	)
}

type TimelineInput struct {
	Year        *string `json:"year"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (in TimelineInput) ValidateCreate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Year, validation.Required.Error("year is required")),
		validation.Field(&in.Title, validation.Required.Error("title is required")),
	)
}

func (in TimelineInput) ValidateUpdate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Year, validation.NilOrNotEmpty.Error("year cannot be blank")),
		validation.Field(&in.Title, validation.NilOrNotEmpty.Error("title cannot be blank")),
	)
}

func (in TimelineInput) apply(ev *models.TimelineEvent) {
	setString(&ev.Year, in.Year)
	setString(&ev.Title, in.Title)
	setString(&ev.Description, in.Description)
}

func noBlankEntries(value interface{}) error {
	values, _ := value.(*[]string)
	if values == nil {
		return nil
	}
	for _, v := range *values {
		if strings.TrimSpace(v) == "" {
			return errors.New("values cannot contain blank entries")
		}
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func blank(value *string) bool {
	return value == nil || strings.TrimSpace(*value) == ""
}
