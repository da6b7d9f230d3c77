package certificate

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"image/color"
	"io"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// Template source formats understood by the renderer.
const (
	FormatHTML  = "html"
	FormatPlain = "plain"
	FormatDOCX  = "docx"
)

// Placeholders substituted in every template format.
const (
	PlaceholderStudentName    = "{{student_name}}"
	PlaceholderCourseTitle    = "{{course_title}}"
	PlaceholderInstructorName = "{{instructor_name}}"
	PlaceholderDate           = "{{date}}"
	PlaceholderCertificateID  = "{{certificate_id}}"
	PlaceholderVerifyURL      = "{{verify_url}}"
	PlaceholderQRCode         = "{{qr_code}}"
)

const (
	dateLayout   = "2006-01-02"
	qrSize       = 256
	canvasWidth  = 1600
	canvasHeight = 1130
	docxBodyPath = "word/document.xml"
)

var (
	// ErrUnsupportedFormat indicates a template format the renderer cannot produce.
	ErrUnsupportedFormat = errors.New("unsupported certificate template format")
	// ErrMalformedTemplate indicates a template whose source could not be parsed.
	ErrMalformedTemplate = errors.New("malformed certificate template")
)

// Template is the source an artifact is rendered from.
type Template struct {
	Format string
	Body   string
	File   []byte
}

// Fields are the values substituted into a template.
type Fields struct {
	StudentName    string
	CourseTitle    string
	InstructorName string
	IssueDate      time.Time
	CertificateID  string
	VerifyURL      string
}

// Artifact is a rendered certificate ready for storage.
type Artifact struct {
	Data        []byte
	ContentType string
	Extension   string
}

// Renderer produces certificate artifacts from templates.
type Renderer struct {
	regular *truetype.Font
	bold    *truetype.Font
}

// NewRenderer parses the embedded Go fonts used for image certificates.
func NewRenderer() (*Renderer, error) {
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	return &Renderer{regular: regular, bold: bold}, nil
}

// Render fills the template with fields and embeds a QR code pointing at the
// verification URL.
func (r *Renderer) Render(ctx context.Context, tpl Template, fields Fields) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}

	switch tpl.Format {
	case FormatHTML:
		return r.renderHTML(tpl, fields)
	case FormatPlain:
		return r.renderPlain(tpl, fields)
	case FormatDOCX:
		return r.renderDOCX(tpl, fields)
	default:
		return Artifact{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, tpl.Format)
	}
}

func (r *Renderer) renderHTML(tpl Template, fields Fields) (Artifact, error) {
	png, err := qrcode.Encode(fields.VerifyURL, qrcode.Medium, qrSize)
	if err != nil {
		return Artifact{}, fmt.Errorf("encode qr code: %w", err)
	}

	qr := fmt.Sprintf(`<img src="data:image/png;base64,%s" alt="Verification QR code" width="120" height="120" />`, base64.StdEncoding.EncodeToString(png))
	body := substitute(tpl.Body, fields, html.EscapeString)

	if strings.Contains(body, PlaceholderQRCode) {
		body = strings.ReplaceAll(body, PlaceholderQRCode, qr)
	} else {
		footer := fmt.Sprintf(`<div class="certificate-verification" style="margin-top:40px;text-align:right;">`+
			`<p style="font-size:12px;"><strong>Certificate ID:</strong> %s</p>%s`+
			`<p style="font-size:10px;color:#666;">Scan to verify certificate</p></div>`,
			html.EscapeString(fields.CertificateID), qr)
		if idx := strings.LastIndex(strings.ToLower(body), "</body>"); idx >= 0 {
			body = body[:idx] + footer + body[idx:]
		} else {
			body += footer
		}
	}

	return Artifact{Data: []byte(body), ContentType: "text/html; charset=utf-8", Extension: ".html"}, nil
}

func (r *Renderer) renderPlain(tpl Template, fields Fields) (Artifact, error) {
	code, err := qrcode.New(fields.VerifyURL, qrcode.Medium)
	if err != nil {
		return Artifact{}, fmt.Errorf("encode qr code: %w", err)
	}

	dc := gg.NewContext(canvasWidth, canvasHeight)
	dc.SetColor(color.White)
	dc.Clear()

	dc.SetColor(color.NRGBA{R: 0x1F, G: 0x3A, B: 0x5F, A: 0xFF})
	dc.SetLineWidth(12)
	dc.DrawRectangle(40, 40, canvasWidth-80, canvasHeight-80)
	dc.Stroke()

	dc.SetFontFace(r.face(r.bold, 56))
	dc.DrawStringAnchored(fields.CourseTitle, canvasWidth/2, 200, 0.5, 0.5)

	body := strings.TrimSpace(substitute(tpl.Body, fields, nil))
	if body == "" {
		body = fmt.Sprintf("This certifies that %s completed %s.", fields.StudentName, fields.CourseTitle)
	}
	dc.SetColor(color.NRGBA{R: 0x22, G: 0x22, B: 0x22, A: 0xFF})
	dc.SetFontFace(r.face(r.regular, 34))
	dc.DrawStringWrapped(body, canvasWidth/2, 320, 0.5, 0, canvasWidth-320, 1.6, gg.AlignCenter)

	dc.SetFontFace(r.face(r.regular, 24))
	dc.DrawStringAnchored("Instructor: "+fields.InstructorName, 140, canvasHeight-200, 0, 0.5)
	dc.DrawStringAnchored("Issued: "+fields.IssueDate.UTC().Format(dateLayout), 140, canvasHeight-160, 0, 0.5)
	dc.DrawStringAnchored("Certificate ID: "+fields.CertificateID, 140, canvasHeight-120, 0, 0.5)

	dc.DrawImage(code.Image(200), canvasWidth-320, canvasHeight-320)

	var out bytes.Buffer
	if err := dc.EncodePNG(&out); err != nil {
		return Artifact{}, fmt.Errorf("encode png: %w", err)
	}
	return Artifact{Data: out.Bytes(), ContentType: "image/png", Extension: ".png"}, nil
}

// renderDOCX rewrites the placeholders in the main document part and appends the
// certificate id and verification URL as a trailing paragraph. Placeholders split
// across runs by the editor are left untouched.
func (r *Renderer) renderDOCX(tpl Template, fields Fields) (Artifact, error) {
	reader, err := zip.NewReader(bytes.NewReader(tpl.File), int64(len(tpl.File)))
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: %v", ErrMalformedTemplate, err)
	}

	var out bytes.Buffer
	writer := zip.NewWriter(&out)
	found := false
	for _, entry := range reader.File {
		content, err := readEntry(entry)
		if err != nil {
			return Artifact{}, fmt.Errorf("%w: %v", ErrMalformedTemplate, err)
		}

		if entry.Name == docxBodyPath {
			found = true
			content = []byte(appendDOCXParagraph(substitute(string(content), fields, escapeXML), fields))
		}

		header := entry.FileHeader
		target, err := writer.CreateHeader(&header)
		if err != nil {
			return Artifact{}, fmt.Errorf("write docx entry: %w", err)
		}
		if _, err := target.Write(content); err != nil {
			return Artifact{}, fmt.Errorf("write docx entry: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return Artifact{}, fmt.Errorf("close docx: %w", err)
	}
	if !found {
		return Artifact{}, fmt.Errorf("%w: missing %s", ErrMalformedTemplate, docxBodyPath)
	}

	return Artifact{
		Data:        out.Bytes(),
		ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Extension:   ".docx",
	}, nil
}

func (r *Renderer) face(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingNone})
}

// substitute replaces the field placeholders, escaping values with escape when set.
// The QR placeholder is left for the caller.
func substitute(body string, fields Fields, escape func(string) string) string {
	if escape == nil {
		escape = func(s string) string { return s }
	}
	replacer := strings.NewReplacer(
		PlaceholderStudentName, escape(fields.StudentName),
		PlaceholderCourseTitle, escape(fields.CourseTitle),
		PlaceholderInstructorName, escape(fields.InstructorName),
		PlaceholderDate, escape(fields.IssueDate.UTC().Format(dateLayout)),
		PlaceholderCertificateID, escape(fields.CertificateID),
		PlaceholderVerifyURL, escape(fields.VerifyURL),
	)
	return replacer.Replace(body)
}

func appendDOCXParagraph(document string, fields Fields) string {
	paragraph := fmt.Sprintf(`<w:p><w:r><w:t xml:space="preserve">Certificate ID: %s</w:t></w:r></w:p>`+
		`<w:p><w:r><w:t xml:space="preserve">Verify at: %s</w:t></w:r></w:p>`,
		escapeXML(fields.CertificateID), escapeXML(fields.VerifyURL))

	// Word requires sectPr to stay the last child of the body.
	if idx := strings.LastIndex(document, "<w:sectPr"); idx >= 0 {
		return document[:idx] + paragraph + document[idx:]
	}
	if idx := strings.LastIndex(document, "</w:body>"); idx >= 0 {
		return document[:idx] + paragraph + document[idx:]
	}
	return document
}

func escapeXML(value string) string {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(value)); err != nil {
		return ""
	}
	return buf.String()
}

func readEntry(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
