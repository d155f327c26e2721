package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

const SingletonID = 1

const (
	RoleAdmin    = "ADMIN"
	RoleEmployee = "EMPLOYEE"
)

type Hero struct {
	ID       int64   `db:"id" json:"id"`
	Title    string  `db:"title" json:"title"`
	Subtitle string  `db:"subtitle" json:"subtitle"`
	CTALabel string  `db:"cta_label" json:"ctaLabel"`
	ImageURL *string `db:"image_url" json:"imageUrl"`
}

type About struct {
	ID         int64    `db:"id" json:"id"`
	Title      string   `db:"title" json:"title"`
	Body       string   `db:"body" json:"body"`
	Mission    string   `db:"mission" json:"mission"`
	Vision     string   `db:"vision" json:"vision"`
	ValuesJSON string   `db:"core_values" json:"-"`
	Values     []string `db:"-" json:"values"`
}

type Contact struct {
	ID       int64  `db:"id" json:"id"`
	Title    string `db:"title" json:"title"`
	Subtitle string `db:"subtitle" json:"subtitle"`
	Address  string `db:"address" json:"address"`
	Phone    string `db:"phone" json:"phone"`
	Email    string `db:"email" json:"email"`
	Hours    string `db:"hours" json:"hours"`
}

type Category struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

type Project struct {
	ID             int64   `db:"id" json:"id"`
	Title          string  `db:"title" json:"title"`
	Description    string  `db:"description" json:"description"`
	ImageURL       string  `db:"image_url" json:"imageUrl"`
	Client         *string `db:"client" json:"client"`
	CompletionDate *string `db:"completion_date" json:"completionDate"`
	CategoryID     int64   `db:"category_id" json:"categoryId"`
	CategoryName   string  `db:"category_name" json:"categoryName,omitempty"`
}

type Service struct {
	ID          int64        `db:"id" json:"id"`
	Title       string       `db:"title" json:"title"`
	Description string       `db:"description" json:"description"`
	Icon        string       `db:"icon" json:"icon"`
	SubServices []SubService `db:"-" json:"subServices"`
}

type SubService struct {
	ID          int64   `db:"id" json:"id"`
	ServiceID   int64   `db:"service_id" json:"serviceId"`
	Title       string  `db:"title" json:"title"`
	Description string  `db:"description" json:"description"`
	ImageURL    *string `db:"image_url" json:"imageUrl"`
	Position    int     `db:"position" json:"position"`
}

type Partner struct {
	ID      int64  `db:"id" json:"id"`
	LogoURL string `db:"logo_url" json:"logoUrl"`
}

type TimelineEvent struct {
	ID          int64  `db:"id" json:"id"`
	Year        string `db:"year" json:"year"`
	Title       string `db:"title" json:"title"`
	Description string `db:"description" json:"description"`
}

type VisitStats struct {
	TotalVisits    int64 `db:"total_visits" json:"totalVisits"`
	UniqueVisitors int64 `db:"unique_visitors" json:"uniqueVisitors"`
}

type Admin struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// RefID is a relational id that clients may send as a JSON number or a numeric string.
type RefID int64

var ErrInvalidRefID = errors.New("must be a positive integer id")

func (r *RefID) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if bytes.Equal(raw, []byte("null")) {
		*r = 0
		return nil
	}
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ErrInvalidRefID
		}
		raw = []byte(strings.TrimSpace(s))
	}
	value, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || value <= 0 {
		return ErrInvalidRefID
	}
	*r = RefID(value)
	return nil
}

func (r RefID) Int64() int64 {
	return int64(r)
}
