// Package models defines the relational schema for documents, generation
// jobs and the produced slide decks.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Job lifecycle: queued -> running -> done | failed.
const (
	JobQueued  = "queued"
	JobRunning = "running"
	JobFailed  = "failed"
	JobDone    = "done"
)

// Document lifecycle: uploaded -> processing -> ready | failed.
const (
	DocumentUploaded   = "uploaded"
	DocumentProcessing = "processing"
	DocumentReady      = "ready"
	DocumentFailed     = "failed"
)

type User struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	AuthSub   string    `gorm:"type:varchar(255);uniqueIndex" json:"auth_sub"`
	Email     string    `gorm:"type:varchar(320)" json:"email"`
	CreatedAt time.Time `json:"created_at"`

	Documents []Document `gorm:"foreignKey:OwnerID" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

type Document struct {
	ID        string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	OwnerID   string            `gorm:"type:varchar(36);index" json:"owner_id"`
	Title     string            `gorm:"type:varchar(500)" json:"title"`
	Language  string            `gorm:"type:varchar(32)" json:"language"`
	Pages     int               `json:"pages"`
	Status    string            `gorm:"type:varchar(16);default:uploaded" json:"status"`
	FileKey   string            `gorm:"type:varchar(1024)" json:"file_key"`
	Metadata  datatypes.JSONMap `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`

	Jobs     []Job           `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"-"`
	Sections []DeckSection   `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"-"`
	Images   []DocumentImage `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"-"`
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

type Job struct {
	ID          string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	DocumentID  string            `gorm:"type:varchar(36);index" json:"document_id"`
	Status      string            `gorm:"type:varchar(16);default:queued" json:"status"`
	Progress    float64           `json:"progress"`
	ErrorCode   string            `gorm:"type:varchar(64)" json:"error_code"`
	ErrorDetail string            `gorm:"type:text" json:"error_detail"`
	Metrics     datatypes.JSONMap `json:"metrics"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}

// SourceSpan anchors a bullet back into the source document.
type SourceSpan struct {
	ID             string `gorm:"type:varchar(36);primaryKey" json:"id"`
	DocumentID     string `gorm:"type:varchar(36);index" json:"document_id"`
	Page           int    `json:"page"`
	ParagraphIndex int    `json:"paragraph_index"`
	QuoteSnippet   string `gorm:"type:text" json:"quote_snippet"`
	CharStart      *int   `json:"char_start"`
	CharEnd        *int   `json:"char_end"`
}

func (s *SourceSpan) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

type DocumentImage struct {
	ID         string `gorm:"type:varchar(36);primaryKey" json:"id"`
	DocumentID string `gorm:"type:varchar(36);index" json:"document_id"`
	Page       int    `json:"page"`
	ImageIndex int    `json:"image_index"`
	StorageKey string `gorm:"type:varchar(1024)" json:"storage_key"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	IsFormula  bool   `json:"is_formula"`
	Latex      string `gorm:"type:text" json:"latex"`
}

func (i *DocumentImage) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

type DeckSection struct {
	ID          string `gorm:"type:varchar(36);primaryKey" json:"id"`
	DocumentID  string `gorm:"type:varchar(36);index" json:"document_id"`
	Heading     string `gorm:"type:varchar(500)" json:"heading"`
	SummaryNote string `gorm:"type:text" json:"summary_note"`
	SortIndex   int    `json:"sort_index"`

	Subsections []DeckSubsection `gorm:"foreignKey:SectionID;constraint:OnDelete:CASCADE" json:"subsections"`
}

func (s *DeckSection) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

type DeckSubsection struct {
	ID         string `gorm:"type:varchar(36);primaryKey" json:"id"`
	SectionID  string `gorm:"type:varchar(36);index" json:"section_id"`
	Heading    string `gorm:"type:varchar(500)" json:"heading"`
	Annotation string `gorm:"type:text" json:"annotation"`
	SortIndex  int    `json:"sort_index"`

	Bullets []DeckBullet `gorm:"foreignKey:SubsectionID;constraint:OnDelete:CASCADE" json:"bullets"`
}

func (s *DeckSubsection) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

type DeckBullet struct {
	ID           string  `gorm:"type:varchar(36);primaryKey" json:"id"`
	SubsectionID string  `gorm:"type:varchar(36);index" json:"subsection_id"`
	Text         string  `gorm:"type:text" json:"text"`
	SortIndex    int     `json:"sort_index"`
	ImageID      *string `gorm:"type:varchar(36)" json:"image_id"`

	Citations []BulletCitation `gorm:"foreignKey:BulletID;constraint:OnDelete:CASCADE" json:"citations"`
}

func (b *DeckBullet) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

type BulletCitation struct {
	ID           string `gorm:"type:varchar(36);primaryKey" json:"id"`
	BulletID     string `gorm:"type:varchar(36);index" json:"bullet_id"`
	SourceSpanID string `gorm:"type:varchar(36);index" json:"source_span_id"`
}

func (c *BulletCitation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// All lists every table in migration order.
func All() []any {
	return []any{
		&User{}, &Document{}, &Job{}, &SourceSpan{}, &DocumentImage{},
		&DeckSection{}, &DeckSubsection{}, &DeckBullet{}, &BulletCitation{},
	}
}
