package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// CertificateRepository stores issued certificates. There is no update or delete path.
type CertificateRepository interface {
	Create(ctx context.Context, certificate *models.Certificate) error
	GetByStudentCourse(ctx context.Context, studentID, courseID uint) (models.Certificate, error)
	GetByVerificationID(ctx context.Context, verificationID string) (models.Certificate, error)
	ListByStudent(ctx context.Context, studentID uint) ([]models.Certificate, error)
}

// CertificateTemplateRepository stores certificate templates.
type CertificateTemplateRepository interface {
	Create(ctx context.Context, template *models.CertificateTemplate) error
	GetByID(ctx context.Context, id uint) (models.CertificateTemplate, error)
	ListVisibleTo(ctx context.Context, instructorID uint) ([]models.CertificateTemplate, error)
	GetDefault(ctx context.Context) (models.CertificateTemplate, error)
	Delete(ctx context.Context, id uint) error
}

type certificateRepository struct {
	db *gorm.DB
}

// NewCertificateRepository instantiates a GORM-backed certificate repository.
func NewCertificateRepository(db *gorm.DB) CertificateRepository {
	return &certificateRepository{db: db}
}

func (r *certificateRepository) Create(ctx context.Context, certificate *models.Certificate) error {
	return r.db.WithContext(ctx).Omit("Student", "Course").Create(certificate).Error
}

func (r *certificateRepository) GetByStudentCourse(ctx context.Context, studentID, courseID uint) (models.Certificate, error) {
	var certificate models.Certificate
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Take(&certificate).Error; err != nil {
		return models.Certificate{}, err
	}
	return certificate, nil
}

// GetByVerificationID resolves a certificate for public verification. Certificates stay
// verifiable after their course is soft-deleted.
func (r *certificateRepository) GetByVerificationID(ctx context.Context, verificationID string) (models.Certificate, error) {
	var certificate models.Certificate
	if err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("Course", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Where("verification_id = ?", verificationID).
		Take(&certificate).Error; err != nil {
		return models.Certificate{}, err
	}
	return certificate, nil
}

func (r *certificateRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.Certificate, error) {
	var certificates []models.Certificate
	if err := r.db.WithContext(ctx).
		Preload("Course", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Where("student_id = ?", studentID).
		Order("issue_date DESC").
		Find(&certificates).Error; err != nil {
		return nil, err
	}
	return certificates, nil
}

type certificateTemplateRepository struct {
	db *gorm.DB
}

// NewCertificateTemplateRepository instantiates a GORM-backed template repository.
func NewCertificateTemplateRepository(db *gorm.DB) CertificateTemplateRepository {
	return &certificateTemplateRepository{db: db}
}

func (r *certificateTemplateRepository) Create(ctx context.Context, template *models.CertificateTemplate) error {
	return r.db.WithContext(ctx).Create(template).Error
}

func (r *certificateTemplateRepository) GetByID(ctx context.Context, id uint) (models.CertificateTemplate, error) {
	var template models.CertificateTemplate
	if err := r.db.WithContext(ctx).First(&template, id).Error; err != nil {
		return models.CertificateTemplate{}, err
	}
	return template, nil
}

func (r *certificateTemplateRepository) ListVisibleTo(ctx context.Context, instructorID uint) ([]models.CertificateTemplate, error) {
	var templates []models.CertificateTemplate
	if err := r.db.WithContext(ctx).
		Omit("file_data").
		Where("type = ? OR instructor_id = ?", models.TemplateTypeDefault, instructorID).
		Order("type ASC, id ASC").
		Find(&templates).Error; err != nil {
		return nil, err
	}
	return templates, nil
}

func (r *certificateTemplateRepository) GetDefault(ctx context.Context) (models.CertificateTemplate, error) {
	var template models.CertificateTemplate
	if err := r.db.WithContext(ctx).
		Where("type = ?", models.TemplateTypeDefault).
		Order("id ASC").
		First(&template).Error; err != nil {
		return models.CertificateTemplate{}, err
	}
	return template, nil
}

func (r *certificateTemplateRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.CertificateTemplate{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
