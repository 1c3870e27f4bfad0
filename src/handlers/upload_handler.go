package handlers

import (
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/username/revoledger/src/logger"
	"github.com/username/revoledger/src/security/validation"
	"github.com/username/revoledger/src/services"
	"github.com/username/revoledger/src/utils"
)

type UploadHandler struct {
	ledgerService      services.LedgerService
	maxUploadSizeBytes int64
}

func NewUploadHandler(service services.LedgerService, maxUploadSizeBytes int64) *UploadHandler {
	return &UploadHandler{
		ledgerService:      service,
		maxUploadSizeBytes: maxUploadSizeBytes,
	}
}

// readUploadedFile extracts and checks the "file" form field. It writes the error response
// itself and returns false when the request cannot be processed.
func readUploadedFile(w http.ResponseWriter, r *http.Request, maxSize int64) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1024*1024)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		logger.FromContext(r.Context()).Warn("Failed to parse multipart form or request too large", "error", err, "limit", maxSize)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d bytes)", maxSize), http.StatusBadRequest)
		return nil, nil, false
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		logger.FromContext(r.Context()).Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return nil, nil, false
	}

	if fileHeader.Size > maxSize {
		file.Close()
		logger.FromContext(r.Context()).Warn("Uploaded file header reports size too large", "fileSize", fileHeader.Size, "limit", maxSize)
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d bytes", maxSize), http.StatusBadRequest)
		return nil, nil, false
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateClientContentType(clientContentType); err != nil {
		file.Close()
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return nil, nil, false
	}

	detectedContentType, err := validation.ValidateFileContentByMagicBytes(file)
	if err != nil {
		file.Close()
		logger.FromContext(r.Context()).Warn("Server-side file content validation failed", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return nil, nil, false
	}
	logger.FromContext(r.Context()).Info("File content validated by magic bytes", "filename", fileHeader.Filename, "clientType", clientContentType, "detectedType", detectedContentType)
	return file, fileHeader, true
}

// HandleUpload stores a statement file. The optional "source" form field picks the parser.
func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	file, fileHeader, ok := readUploadedFile(w, r, h.maxUploadSizeBytes)
	if !ok {
		return
	}
	defer file.Close()

	logger.FromContext(r.Context()).Info("Processing upload request", "filename", fileHeader.Filename)
	result, err := h.ledgerService.UploadStatement(r.Context(), file, fileHeader.Filename, r.FormValue("source"))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, result, http.StatusCreated)
}

func (h *UploadHandler) HandleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.ledgerService.ListFiles(r.Context())
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	utils.SendJSONWithETag(w, r, files)
}

func (h *UploadHandler) HandleDeleteFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.ledgerService.DeleteFile(r.Context(), id); err != nil {
		sendServiceError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("File deleted", "fileID", id)
	w.WriteHeader(http.StatusNoContent)
}
