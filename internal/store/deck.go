package store

import (
	"gorm.io/gorm"

	"github.com/local/slidenode/internal/models"
)

// Deck inputs are a fully-materialized outline tree; ReplaceDeck turns
// them into rows in one transaction.

type SpanInput struct {
	Page           int
	ParagraphIndex int
	QuoteSnippet   string
	CharStart      *int
	CharEnd        *int
}

type BulletInput struct {
	Text    string
	ImageID *string
	Span    *SpanInput
}

type SubsectionInput struct {
	Heading    string
	Annotation string
	Bullets    []BulletInput
}

type SectionInput struct {
	Heading     string
	SummaryNote string
	Subsections []SubsectionInput
}

// DeckStats summarizes the persisted deck for the quality gate.
type DeckStats struct {
	Bullets int
	Cited   int
}

// ReplaceDeck atomically swaps the document's deck: any previous
// sections, subsections, bullets, citations and spans are removed before
// the new tree is written. Sort indexes follow input order.
func (s *Store) ReplaceDeck(doc *models.Document, sections []SectionInput) (DeckStats, error) {
	var stats DeckStats

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := deleteDeck(tx, doc.ID); err != nil {
			return err
		}

		for sIdx, sec := range sections {
			section := models.DeckSection{
				DocumentID:  doc.ID,
				Heading:     sec.Heading,
				SummaryNote: sec.SummaryNote,
				SortIndex:   sIdx,
			}
			if err := tx.Create(&section).Error; err != nil {
				return err
			}

			for ssIdx, sub := range sec.Subsections {
				subsection := models.DeckSubsection{
					SectionID:  section.ID,
					Heading:    sub.Heading,
					Annotation: sub.Annotation,
					SortIndex:  ssIdx,
				}
				if err := tx.Create(&subsection).Error; err != nil {
					return err
				}

				for bIdx, bu := range sub.Bullets {
					bullet := models.DeckBullet{
						SubsectionID: subsection.ID,
						Text:         bu.Text,
						SortIndex:    bIdx,
						ImageID:      bu.ImageID,
					}
					if err := tx.Create(&bullet).Error; err != nil {
						return err
					}
					stats.Bullets++

					if bu.Span == nil {
						continue
					}
					span := models.SourceSpan{
						DocumentID:     doc.ID,
						Page:           bu.Span.Page,
						ParagraphIndex: bu.Span.ParagraphIndex,
						QuoteSnippet:   bu.Span.QuoteSnippet,
						CharStart:      bu.Span.CharStart,
						CharEnd:        bu.Span.CharEnd,
					}
					if err := tx.Create(&span).Error; err != nil {
						return err
					}
					citation := models.BulletCitation{
						BulletID:     bullet.ID,
						SourceSpanID: span.ID,
					}
					if err := tx.Create(&citation).Error; err != nil {
						return err
					}
					stats.Cited++
				}
			}
		}
		return nil
	})

	if err != nil {
		return DeckStats{}, err
	}
	return stats, nil
}

// deleteDeck removes the existing deck tree bottom-up so no orphan rows
// survive on backends without FK cascades.
func deleteDeck(tx *gorm.DB, docID string) error {
	var sectionIDs []string
	if err := tx.Model(&models.DeckSection{}).Where("document_id = ?", docID).Pluck("id", &sectionIDs).Error; err != nil {
		return err
	}

	if len(sectionIDs) > 0 {
		var subsectionIDs []string
		if err := tx.Model(&models.DeckSubsection{}).Where("section_id IN ?", sectionIDs).Pluck("id", &subsectionIDs).Error; err != nil {
			return err
		}
		if len(subsectionIDs) > 0 {
			var bulletIDs []string
			if err := tx.Model(&models.DeckBullet{}).Where("subsection_id IN ?", subsectionIDs).Pluck("id", &bulletIDs).Error; err != nil {
				return err
			}
			if len(bulletIDs) > 0 {
				if err := tx.Where("bullet_id IN ?", bulletIDs).Delete(&models.BulletCitation{}).Error; err != nil {
					return err
				}
				if err := tx.Where("id IN ?", bulletIDs).Delete(&models.DeckBullet{}).Error; err != nil {
					return err
				}
			}
			if err := tx.Where("id IN ?", subsectionIDs).Delete(&models.DeckSubsection{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("id IN ?", sectionIDs).Delete(&models.DeckSection{}).Error; err != nil {
			return err
		}
	}

	return tx.Where("document_id = ?", docID).Delete(&models.SourceSpan{}).Error
}

// LoadDeck returns the persisted deck ordered by sort index, with
// bullets and citations preloaded.
func (s *Store) LoadDeck(docID string) ([]models.DeckSection, error) {
	var sections []models.DeckSection
	err := s.db.
		Preload("Subsections", func(db *gorm.DB) *gorm.DB { return db.Order("sort_index") }).
		Preload("Subsections.Bullets", func(db *gorm.DB) *gorm.DB { return db.Order("sort_index") }).
		Preload("Subsections.Bullets.Citations").
		Where("document_id = ?", docID).
		Order("sort_index").
		Find(&sections).Error
	return sections, err
}
