package v1

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/etcop/copilot-gateway/copilot"
	"github.com/etcop/copilot-gateway/internal/i18n"
)

const (
	// maxUploadSize caps one uploaded part at 512 MiB.
	maxUploadSize = 512 << 20

	// uploadConcurrency bounds the parallel forwards to the backend.
	uploadConcurrency = 4
)

// HandleFile forwards every uploaded part to the backend and collects
// the per-part answers keyed by field name. An empty part list is a
// valid request with an empty result.
func (s *APIV1Service) HandleFile(c echo.Context) error {
	lang := s.language(c)

	form, err := c.MultipartForm()
	if err != nil {
		return errors.Wrap(err, "malformed multipart request")
	}
	defer func() { _ = form.RemoveAll() }()

	endpoint := copilot.FileEndpoint
	if values := form.Value["endpoint"]; len(values) > 0 && values[0] != "" {
		endpoint = values[0]
	}

	// Validate every part before forwarding any of them: a rejected
	// request must not leave forwards running behind the response.
	type uploadPart struct {
		field  string
		header *multipart.FileHeader
	}
	var parts []uploadPart
	for field, headers := range form.File {
		for _, header := range headers {
			if header.Size > s.maxUploadBytes {
				return copilot.NewServiceErrorWithCode(
					i18n.Messagef(lang, i18n.MsgFileTooBig, header.Filename), http.StatusBadRequest)
			}
			parts = append(parts, uploadPart{field: field, header: header})
		}
	}

	results := map[string]string{}
	var resultsMu sync.Mutex

	group, ctx := errgroup.WithContext(c.Request().Context())
	group.SetLimit(uploadConcurrency)

	for _, part := range parts {
		group.Go(func() error {
			path, err := materializePart(part.header)
			if err != nil {
				return copilot.NewServiceError(i18n.Messagef(lang, i18n.MsgErrorSavingFile, part.header.Filename))
			}
			defer os.RemoveAll(filepath.Dir(path))

			answer, err := s.Backend.UploadFile(ctx, path, endpoint)
			if err != nil {
				return err
			}
			s.Metrics.ObserveUpload()

			resultsMu.Lock()
			results[part.field] = answer
			resultsMu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, results)
}

// materializePart writes one uploaded part to a temp file and returns
// its path. A nameless part gets a generated name so the backend always
// sees a filename.
func materializePart(header *multipart.FileHeader) (string, error) {
	src, err := header.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	filename := header.Filename
	if filename == "" {
		filename = uuid.NewString()
	}
	dir, err := os.MkdirTemp("", "copilot-upload-")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.Base(filename))

	dst, err := os.Create(path)
	if err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	return path, nil
}
