package docs

import (
	"fmt"

	"telegram-verification-bot/internal/domain/model"
	"telegram-verification-bot/internal/domain/ports/adapter"
)

// Segment selects which evidence set a producer renders.
type Segment string

const (
	SegmentTeacher Segment = "teacher"
	SegmentStudent Segment = "student"
)

var _ adapter.DocumentProducer = (*Producer)(nil)

// Producer renders the supporting evidence for one identity. Teacher-segment
// attempts get an employment letter PDF plus a PNG scan of a staff badge;
// student-segment attempts get a PNG student card. The core treats all of it
// as opaque bytes. A producer carries no per-attempt state and may be shared
// across concurrent attempts.
type Producer struct {
	segment Segment
}

func NewProducer(segment Segment) *Producer {
	return &Producer{segment: segment}
}

func (p *Producer) Produce(identity model.Identity) ([]model.Document, error) {
	switch p.segment {
	case SegmentStudent:
		card, err := renderCardPNG(identity, "STUDENT ID")
		if err != nil {
			return nil, fmt.Errorf("render student card: %w", err)
		}
		return []model.Document{
			{FileName: "student_card.png", MIMEType: "image/png", Data: card},
		}, nil
	default:
		letter, err := renderEmploymentPDF(identity)
		if err != nil {
			return nil, fmt.Errorf("render employment letter: %w", err)
		}
		badge, err := renderCardPNG(identity, "STAFF ID")
		if err != nil {
			return nil, fmt.Errorf("render staff badge: %w", err)
		}
		return []model.Document{
			{FileName: "teacher_document.pdf", MIMEType: "application/pdf", Data: letter},
			{FileName: "teacher_document.png", MIMEType: "image/png", Data: badge},
		}, nil
	}
}
