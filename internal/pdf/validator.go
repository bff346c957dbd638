package pdf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	pdferrors "github.com/a3tai/mcp-pdf-covenants/internal/pdf/errors"
)

// headerWindow is how far into the file the %PDF- marker may start.
const headerWindow = 1024

// Validator checks that a file is a readable PDF within the size limit
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a new PDF validator with the specified constraints
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{
		maxFileSize: maxFileSize,
	}
}

// ValidateFile reports whether path can be structured. An unusable file
// is a valid answer, not an error.
func (v *Validator) ValidateFile(req PDFValidateFileRequest) (*PDFValidateFileResult, error) {
	result := &PDFValidateFileResult{
		Path:  req.Path,
		Valid: false,
	}

	if err := v.Check(req.Path); err != nil {
		result.Message = err.Error()
		return result, nil //nolint:nilerr // the validation failure is the result
	}

	result.Valid = true
	return result, nil
}

// Check runs every validation step, ending with a full open through
// ledongthuc/pdf. Failures are InvalidDocument structure errors.
func (v *Validator) Check(filePath string) error {
	if filePath == "" {
		return pdferrors.New(pdferrors.ErrorTypeInvalidDocument, "path cannot be empty")
	}

	fileInfo, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return pdferrors.New(pdferrors.ErrorTypeInvalidDocument, "file does not exist").WithContext(filePath)
	}
	if err != nil {
		return pdferrors.Wrap(pdferrors.ErrorTypeInvalidDocument, fmt.Errorf("cannot access file: %w", err))
	}
	if err := v.CheckInfo(filePath, fileInfo); err != nil {
		return err
	}
	if err := checkHeader(filePath); err != nil {
		return pdferrors.Wrap(pdferrors.ErrorTypeInvalidDocument, err).WithContext(filePath)
	}

	f, r, err := pdf.Open(filePath)
	if err != nil {
		return pdferrors.Wrap(pdferrors.ErrorTypeInvalidDocument, fmt.Errorf("invalid PDF file: %w", err)).WithContext(filePath)
	}
	defer f.Close()

	if r.NumPage() == 0 {
		return pdferrors.New(pdferrors.ErrorTypeInvalidDocument, "document has no pages").WithContext(filePath)
	}
	return nil
}

// IsValidPDF performs a quick check to see if a file is a valid PDF
func (v *Validator) IsValidPDF(filePath string) bool {
	return v.Check(filePath) == nil
}

// CheckInfo validates what the directory entry tells without opening the
// file.
func (v *Validator) CheckInfo(filePath string, fileInfo os.FileInfo) error {
	switch {
	case fileInfo.IsDir():
		return pdferrors.New(pdferrors.ErrorTypeInvalidDocument, "path is a directory, not a file").WithContext(filePath)
	case !isPDFName(filePath):
		return pdferrors.New(pdferrors.ErrorTypeInvalidDocument, "file is not a PDF").WithContext(filePath)
	case fileInfo.Size() == 0:
		return pdferrors.New(pdferrors.ErrorTypeInvalidDocument, "file is empty").WithContext(filePath)
	case v.maxFileSize > 0 && fileInfo.Size() > v.maxFileSize:
		return pdferrors.New(pdferrors.ErrorTypeInvalidDocument,
			fmt.Sprintf("file too large: %d bytes (max: %d bytes)", fileInfo.Size(), v.maxFileSize)).WithContext(filePath)
	}
	return nil
}

func checkHeader(filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("cannot open file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, headerWindow)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("cannot read header: %w", err)
	}
	if !bytes.Contains(buf[:n], []byte("%PDF-")) {
		return fmt.Errorf("missing %%PDF- header")
	}
	return nil
}

func isPDFName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}
