package registration

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Document is a stored attachment. Key locates its content in the DocumentStore.
type Document struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Key         string `json:"-"`
}

// documentRow carries Key through storage since it is hidden from API responses.
type documentRow struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Key         string `json:"key"`
}

// Documents is stored as a JSON document.
type Documents []Document

func (docs Documents) Value() (driver.Value, error) {
	rows := make([]documentRow, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, documentRow(d))
	}
	return json.Marshal(rows)
}

func (docs *Documents) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*docs = Documents{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("cannot scan %T into registration.Documents", src)
	}
	var rows []documentRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	out := make(Documents, 0, len(rows))
	for _, r := range rows {
		out = append(out, Document(r))
	}
	*docs = out
	return nil
}

type Registration struct {
	ID          string      `json:"id"`
	Application Application `json:"application"`
	Status      string      `json:"status"`
	Documents   Documents   `json:"documents"`
	StudentID   string      `json:"student_id,omitempty"`
	ReviewNote  string      `json:"review_note,omitempty"`
	ReviewedBy  string      `json:"reviewed_by,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`            // UTC
	UpdatedAt   time.Time   `json:"updated_at"`            // UTC
	ReviewedAt  *time.Time  `json:"reviewed_at,omitempty"` // UTC
}

func (r Registration) Document(id string) (Document, bool) {
	for _, d := range r.Documents {
		if d.ID == id {
			return d, true
		}
	}
	return Document{}, false
}

// Upload is an attachment sent along with an application.
type Upload struct {
	DocumentInput
	Content io.Reader
}

// Review is the admin decision on a pending registration.
type Review struct {
	Note string `json:"note" validate:"omitempty,max=1000"`
}

type QueryFilter struct {
	Status   string `query:"status"`
	SchoolID string `query:"school_id"`
	Search   string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.SchoolID = core.CleanString(qf.SchoolID)
	qf.Search = core.CleanString(qf.Search)
}

// DuplicateFilter identifies a pending application for the same child.
type DuplicateFilter struct {
	GuardianEmail string
	FirstName     string
	LastName      string
	DateOfBirth   string
}

var OrderingFields = map[string]string{
	"created_at":  "created_at",
	"updated_at":  "updated_at",
	"status":      "status",
	"last_name":   "last_name",
	"class_name":  "class_name",
	"reviewed_at": "reviewed_at",
}

// DocumentStore keeps the content of registration documents.
type DocumentStore interface {
	Save(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
