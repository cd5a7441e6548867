package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// суммы в API отдаём числами, а не строками
	decimal.MarshalJSONWithoutQuotes = true
}

// Category общая для поставщиков и RFP
type Category string

const (
	CategoryTechnology    Category = "Technology"
	CategoryMarketing     Category = "Marketing"
	CategoryConsulting    Category = "Consulting"
	CategoryManufacturing Category = "Manufacturing"
	CategoryServices      Category = "Services"
	CategoryOther         Category = "Other"
)

var Categories = []Category{
	CategoryTechnology,
	CategoryMarketing,
	CategoryConsulting,
	CategoryManufacturing,
	CategoryServices,
	CategoryOther,
}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// ParseCategory сравнивает без учёта регистра, неизвестное значение даёт Other
func ParseCategory(s string) Category {
	for _, v := range Categories {
		if strings.EqualFold(strings.TrimSpace(s), string(v)) {
			return v
		}
	}
	return CategoryOther
}

// Date принимает RFC3339 и YYYY-MM-DD. Некорректная строка не роняет
// разбор JSON, а помечает значение, чтобы валидация вернула ошибку поля.
type Date struct {
	time.Time
	malformed bool
}

const dateOnly = "2006-01-02"

func NewDate(t time.Time) Date { return Date{Time: t} }

func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, dateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t.UTC()}, nil
		}
	}
	return Date{}, fmt.Errorf("invalid date %q", s)
}

func (d Date) Malformed() bool { return d.malformed }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Time.UTC().Format(time.RFC3339))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*d = Date{malformed: true}
		return nil
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		*d = Date{malformed: true}
		return nil
	}
	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Time, nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
	case time.Time:
		*d = Date{Time: v.UTC()}
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
	return nil
}

// Page номер страницы и размер, нумерация с единицы
type Page struct {
	Number int
	Limit  int
}

func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Limit
}

// Sort поле сортировки в терминах API (createdAt, name, ...)
type Sort struct {
	Field string
	Desc  bool
}

// Pagination конверт пагинации в ответах списков
type Pagination struct {
	Current int `json:"current"`
	Pages   int `json:"pages"`
	Total   int `json:"total"`
	Limit   int `json:"limit"`
}

func NewPagination(p Page, total int) Pagination {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Pagination{Current: p.Number, Pages: pages, Total: total, Limit: p.Limit}
}

// jsonb хранит вложенные документы в колонках JSONB.
// lib/pq передаёт []byte как bytea, поэтому отдаём строку.
func jsonbValue(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jsonbScan(src, dst any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONB", src)
	}
	return json.Unmarshal(data, dst)
}
