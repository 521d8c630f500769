package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/fpang/cctv-guardian/internal/analysis"
	"github.com/fpang/cctv-guardian/internal/session"
	"github.com/rs/zerolog/log"
)

// uploadField is the multipart field carrying screenshots.
const uploadField = "files"

// multipartMemory is the in-memory budget for multipart parsing; larger
// parts spill to temp files.
const multipartMemory = 32 << 20

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func httpError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorBody{Error: message})
}

// statusFor maps an analysis or session error to an HTTP status.
func statusFor(err error) int {
	if errors.Is(err, session.ErrAnalysisInProgress) {
		return http.StatusConflict
	}
	if errors.Is(err, session.ErrImageNotFound) {
		return http.StatusNotFound
	}
	kind, ok := analysis.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case analysis.KindValidation:
		return http.StatusBadRequest
	case analysis.KindAuth:
		return http.StatusUnauthorized
	case analysis.KindDecode:
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}

func respondError(w http.ResponseWriter, err error) {
	body := errorBody{Error: analysis.UserMessage(err)}
	if kind, ok := analysis.KindOf(err); ok {
		body.Kind = kind.String()
	} else if errors.Is(err, session.ErrAnalysisInProgress) {
		body.Error = "An analysis is already running for this session."
	} else if errors.Is(err, session.ErrImageNotFound) {
		body.Error = "Image not found."
	}
	respondJSON(w, statusFor(err), body)
}

// readUploads reads every file in the multipart "files" field.
func readUploads(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]session.File, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, fmt.Errorf("invalid upload: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		return nil, errors.New("no files in upload")
	}

	files := make([]session.File, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			return nil, err
		}
		files = append(files, session.File{Filename: fh.Filename, Data: data})
	}
	return files, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return data, nil
}
