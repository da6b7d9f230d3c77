package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/handler"
	"github.com/noah-isme/gema-lms-api/internal/middleware"
	"github.com/noah-isme/gema-lms-api/internal/service"
)

type stubCertificateService struct {
	issued      dto.CertificateResponse
	issueErr    error
	eligibility dto.EligibilityResponse
	verified    dto.VerifyResponse
	verifyErr   error
	principal   service.Principal
	issueCalls  int
}

func (s *stubCertificateService) Eligibility(_ context.Context, p service.Principal, courseID uint) (dto.EligibilityResponse, error) {
	s.principal = p
	result := s.eligibility
	result.CourseID = courseID
	return result, nil
}

func (s *stubCertificateService) Issue(_ context.Context, p service.Principal, _ uint) (dto.CertificateResponse, error) {
	s.principal = p
	s.issueCalls++
	return s.issued, s.issueErr
}

func (s *stubCertificateService) Get(context.Context, service.Principal, uint) (dto.CertificateResponse, error) {
	return s.issued, s.issueErr
}

func (s *stubCertificateService) ListMine(context.Context, service.Principal) ([]dto.CertificateResponse, error) {
	return []dto.CertificateResponse{s.issued}, nil
}

func (s *stubCertificateService) Verify(_ context.Context, _ string) (dto.VerifyResponse, error) {
	return s.verified, s.verifyErr
}

func sampleCertificate(created bool) dto.CertificateResponse {
	return dto.CertificateResponse{
		ID:             3,
		CourseID:       11,
		VerificationID: "5b0c6f5e-8f7a-4a52-9d8e-2f6f0c6a1b11",
		VerifyURL:      "https://lms.example.com/verify/5b0c6f5e-8f7a-4a52-9d8e-2f6f0c6a1b11",
		ArtifactURL:    "https://files.example.com/cert.png",
		ArtifactType:   "image/png",
		IssueDate:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Created:        created,
	}
}

func TestCertificateIssueStatusReflectsCreation(t *testing.T) {
	svc := &stubCertificateService{issued: sampleCertificate(true)}
	app, api := newAppAs(200, "student")
	handler.NewCertificateHandler(svc, zerolog.Nop()).Register(api)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/courses/11/certificate", nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, service.Principal{UserID: 200, Role: "student"}, svc.principal)

	svc.issued = sampleCertificate(false)
	resp = doJSON(t, app, http.MethodPost, "/api/v1/courses/11/certificate", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data dto.CertificateResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, svc.issued.VerificationID, body.Data.VerificationID)
}

func TestCertificateIssueIneligible(t *testing.T) {
	svc := &stubCertificateService{issueErr: &service.IneligibleError{Reason: service.ReasonProgressIncomplete}}
	app, api := newAppAs(200, "student")
	handler.NewCertificateHandler(svc, zerolog.Nop()).Register(api)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/courses/11/certificate", nil)
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	var details map[string]string
	require.NoError(t, json.Unmarshal(env.Details, &details))
	require.Equal(t, "progress_incomplete", details["reason"])
}

func TestCertificateIssueRequiresStudent(t *testing.T) {
	svc := &stubCertificateService{issued: sampleCertificate(true)}
	app, api := newAppAs(100, "instructor")
	handler.NewCertificateHandler(svc, zerolog.Nop()).Register(api)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/courses/11/certificate", nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	require.Zero(t, svc.issueCalls)

	anonymous, group := newAppAs(0, "")
	handler.NewCertificateHandler(svc, zerolog.Nop()).Register(group)
	resp = doJSON(t, anonymous, http.MethodGet, "/api/v1/courses/11/certificate/eligibility", nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestCertificateIssueGuardRunsFirst(t *testing.T) {
	svc := &stubCertificateService{issued: sampleCertificate(true)}
	app, api := newAppAs(200, "student")
	handler.NewCertificateHandler(svc, zerolog.Nop()).Register(api, middleware.RateLimit("certificate_issue", 1, time.Minute))

	require.Equal(t, fiber.StatusCreated, doJSON(t, app, http.MethodPost, "/api/v1/courses/11/certificate", nil).StatusCode)
	require.Equal(t, fiber.StatusTooManyRequests, doJSON(t, app, http.MethodPost, "/api/v1/courses/11/certificate", nil).StatusCode)
	require.Equal(t, 1, svc.issueCalls)
}

func TestCertificateVerifyIsPublic(t *testing.T) {
	svc := &stubCertificateService{verified: dto.VerifyResponse{
		Valid:          true,
		Student:        "ada",
		StudentName:    "Ada Lovelace",
		Course:         "Analytical Engines",
		IssuedOn:       "2026-03-01",
		VerificationID: "5b0c6f5e-8f7a-4a52-9d8e-2f6f0c6a1b11",
	}}
	app := fiber.New()
	handler.NewCertificateHandler(svc, zerolog.Nop()).RegisterPublic(app.Group("/api/v1"))

	resp := doJSON(t, app, http.MethodGet, "/api/v1/certificates/verify/5b0c6f5e-8f7a-4a52-9d8e-2f6f0c6a1b11", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body struct {
		Data dto.VerifyResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Data.Valid)
	require.Equal(t, "Ada Lovelace", body.Data.StudentName)

	svc.verifyErr = service.ErrCertificateNotFound
	svc.verified = dto.VerifyResponse{}
	resp = doJSON(t, app, http.MethodGet, "/api/v1/certificates/verify/not-a-uuid", nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	decodeResponse(t, resp, &body)
	require.False(t, body.Data.Valid)
}

func TestCertificateResponseContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("testdata", "certificate.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)

	svc := &stubCertificateService{
		issued:      sampleCertificate(true),
		eligibility: dto.EligibilityResponse{Eligible: true, ProgressPercentage: 100, AssignmentScore: 75},
	}
	app, api := newAppAs(200, "student")
	handler.NewCertificateHandler(svc, zerolog.Nop()).Register(api)

	resp := doJSON(t, app, http.MethodPost, "/api/v1/courses/11/certificate", nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var document interface{}
	decodeResponse(t, resp, &document)
	require.NoError(t, schema.Validate(document))

	resp = doJSON(t, app, http.MethodGet, "/api/v1/courses/11/certificate/eligibility", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var eligibility struct {
		Data dto.EligibilityResponse `json:"data"`
	}
	decodeResponse(t, resp, &eligibility)
	require.True(t, eligibility.Data.Eligible)
	require.Equal(t, uint(11), eligibility.Data.CourseID)
}
