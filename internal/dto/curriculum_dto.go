package dto

import (
	"time"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

const dateLayout = "2006-01-02"

// CourseCreateRequest describes the payload for creating a course.
type CourseCreateRequest struct {
	Title       string  `json:"title" validate:"required,min=3,max=255"`
	Subtitle    string  `json:"subtitle" validate:"omitempty,max=255"`
	Description string  `json:"description"`
	Price       float64 `json:"price" validate:"gte=0"`
	Discount    float64 `json:"discount" validate:"gte=0,lte=100"`
	IsPublished bool    `json:"is_published"`
}

// LessonCreateRequest describes the payload for appending a lesson.
type LessonCreateRequest struct {
	Title string `json:"title" validate:"required,max=255"`
}

// ConceptCreateRequest describes the payload for appending a concept.
type ConceptCreateRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description"`
}

// ContentCreateRequest describes the payload for appending a content item. It is
// accepted as JSON or as multipart form fields next to an optional media file.
type ContentCreateRequest struct {
	Title       string `form:"title" json:"title" validate:"required,max=255"`
	ContentType string `form:"content_type" json:"content_type" validate:"required,oneof=video pdf text"`
	VideoURL    string `form:"video_url" json:"video_url" validate:"omitempty,url"`
	PDFURL      string `form:"pdf_url" json:"pdf_url" validate:"omitempty,url"`
	TextContent string `form:"text_content" json:"text_content"`
	Captions    string `form:"captions" json:"captions"`
	Duration    int    `form:"duration" json:"duration" validate:"gte=0"`
}

// MediaFile carries an uploaded file through the service layer.
type MediaFile struct {
	Name string
	Data []byte
}

// CourseResponse is the serialized course header.
type CourseResponse struct {
	ID                    uint      `json:"id"`
	InstructorID          uint      `json:"instructor_id"`
	Title                 string    `json:"title"`
	Subtitle              string    `json:"subtitle"`
	Description           string    `json:"description"`
	Price                 float64   `json:"price"`
	Discount              float64   `json:"discount"`
	EffectivePrice        float64   `json:"effective_price"`
	IsPublished           bool      `json:"is_published"`
	CertificateTemplateID *uint     `json:"certificate_template_id,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
}

// LessonResponse is the serialized lesson, optionally with its concepts.
type LessonResponse struct {
	ID       uint              `json:"id"`
	CourseID uint              `json:"course_id"`
	Title    string            `json:"title"`
	Order    int               `json:"order"`
	Concepts []ConceptResponse `json:"concepts,omitempty"`
}

// ConceptResponse is the serialized concept, optionally with its contents.
type ConceptResponse struct {
	ID          uint              `json:"id"`
	LessonID    uint              `json:"lesson_id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Order       int               `json:"order"`
	Contents    []ContentResponse `json:"contents,omitempty"`
}

// ContentResponse is the serialized content item.
type ContentResponse struct {
	ID          uint           `json:"id"`
	ConceptID   uint           `json:"concept_id"`
	Title       string         `json:"title"`
	ContentType string         `json:"content_type"`
	VideoURL    string         `json:"video_url,omitempty"`
	PDFURL      string         `json:"pdf_url,omitempty"`
	TextContent string         `json:"text_content,omitempty"`
	Captions    string         `json:"captions,omitempty"`
	Duration    int            `json:"duration"`
	Order       int            `json:"order"`
	Questions   []QuestionView `json:"questions,omitempty"`
}

// CurriculumResponse is the nested course view.
type CurriculumResponse struct {
	Course  CourseResponse   `json:"course"`
	Lessons []LessonResponse `json:"lessons"`
}

// NodeRestoreResponse acknowledges a delete or restore.
type NodeRestoreResponse struct {
	Kind     string `json:"kind"`
	ID       uint   `json:"id"`
	CourseID uint   `json:"course_id"`
	Deleted  bool   `json:"deleted"`
}

// NewCourseResponse converts a model into a DTO.
func NewCourseResponse(model models.Course) CourseResponse {
	return CourseResponse{
		ID:                    model.ID,
		InstructorID:          model.InstructorID,
		Title:                 model.Title,
		Subtitle:              model.Subtitle,
		Description:           model.Description,
		Price:                 model.Price,
		Discount:              model.Discount,
		EffectivePrice:        model.EffectivePrice(),
		IsPublished:           model.IsPublished,
		CertificateTemplateID: model.CertificateTemplateID,
		CreatedAt:             model.CreatedAt,
	}
}

// NewLessonResponse converts a model into a DTO without children.
func NewLessonResponse(model models.Lesson) LessonResponse {
	return LessonResponse{ID: model.ID, CourseID: model.CourseID, Title: model.Title, Order: model.Order}
}

// NewConceptResponse converts a model into a DTO without children.
func NewConceptResponse(model models.Concept) ConceptResponse {
	return ConceptResponse{
		ID:          model.ID,
		LessonID:    model.LessonID,
		Title:       model.Title,
		Description: model.Description,
		Order:       model.Order,
	}
}

// NewContentResponse converts a model into a DTO without questions.
func NewContentResponse(model models.LessonContent) ContentResponse {
	return ContentResponse{
		ID:          model.ID,
		ConceptID:   model.ConceptID,
		Title:       model.Title,
		ContentType: model.ContentType,
		VideoURL:    model.VideoURL,
		PDFURL:      model.PDFURL,
		TextContent: model.TextContent,
		Captions:    model.Captions,
		Duration:    model.Duration,
		Order:       model.Order,
	}
}

// NewLessonResponseSlice converts lessons into DTOs.
func NewLessonResponseSlice(lessons []models.Lesson) []LessonResponse {
	responses := make([]LessonResponse, 0, len(lessons))
	for _, lesson := range lessons {
		responses = append(responses, NewLessonResponse(lesson))
	}
	return responses
}

// NewConceptResponseSlice converts concepts into DTOs.
func NewConceptResponseSlice(concepts []models.Concept) []ConceptResponse {
	responses := make([]ConceptResponse, 0, len(concepts))
	for _, concept := range concepts {
		responses = append(responses, NewConceptResponse(concept))
	}
	return responses
}

// NewContentResponseSlice converts contents into DTOs.
func NewContentResponseSlice(contents []models.LessonContent) []ContentResponse {
	responses := make([]ContentResponse, 0, len(contents))
	for _, content := range contents {
		responses = append(responses, NewContentResponse(content))
	}
	return responses
}
