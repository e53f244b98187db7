package httpbridge

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/xeipuuv/gojsonschema"

	"github.com/soypete/voicejournal/pkg/audio"
	"github.com/soypete/voicejournal/pkg/journal"
	"github.com/soypete/voicejournal/pkg/voice"
)

// Error labels returned in the "error" field.
const (
	errMissingAudio   = "Missing audio data"
	errInvalidFormat  = "Invalid audio format"
	errInvalidRequest = "Invalid request body"
	errNotFound       = "Not found"
	errInternal       = "Internal server error"
)

// null is accepted for both fields so the service decides what "absent" means.
const submissionSchema = `{
	"type": "object",
	"properties": {
		"audioData": {"type": ["string", "null"]},
		"metadata": {"type": ["object", "null"]}
	}
}`

var submissionValidator = func() *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(submissionSchema))
	if err != nil {
		panic(err)
	}
	return schema
}()

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type submissionResponse struct {
	Success       bool            `json:"success"`
	Message       string          `json:"message"`
	Timestamp     string          `json:"timestamp"`
	Metadata      json.RawMessage `json:"metadata"`
	Format        string          `json:"format"`
	Transcription voice.Result    `json:"transcription"`
	JournalID     string          `json:"journalId"`
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, label, message string) {
	respondJSON(w, status, errorResponse{Error: label, Message: message})
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Voice journal API",
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "Server is running",
	})
}

// handleEcho handles POST /echo
func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	var body interface{}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequest, err.Error())
		return
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, errInvalidRequest, "request body must contain a single JSON value")
		return
	}

	out, err := json.Marshal(body)
	if err != nil {
		respondError(w, http.StatusInternalServerError, errInternal, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// handleCreateJournal handles POST /journal and POST /journal/new
func (s *Server) handleCreateJournal(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.decodeSubmission(w, r)
	if !ok {
		return
	}

	receipt, err := s.app.Journal.Create(r.Context(), sub)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, newSubmissionResponse("Audio received and journal entry created", receipt))
}

// handleAppendJournal handles POST /journal/{id}/append
func (s *Server) handleAppendJournal(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	sub, ok := s.decodeSubmission(w, r)
	if !ok {
		return
	}

	receipt, err := s.app.Journal.Append(r.Context(), id, sub)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, newSubmissionResponse("Audio appended to journal entry", receipt))
}

// handleListJournals handles GET /journal
func (s *Server) handleListJournals(w http.ResponseWriter, r *http.Request) {
	records, err := s.app.Journal.List(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

// handleLatestJournal handles GET /journal/latest
func (s *Server) handleLatestJournal(w http.ResponseWriter, r *http.Request) {
	record, err := s.app.Journal.Latest(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

// handleLatestOrNewJournal handles GET /journal/latest-or-new
func (s *Server) handleLatestOrNewJournal(w http.ResponseWriter, r *http.Request) {
	record, err := s.app.Journal.LatestOrCreate(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

// handleGetJournal handles GET /journal/{id}
func (s *Server) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	record, err := s.app.Journal.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

// decodeSubmission reads and schema-checks a journal upload. On failure it
// has already written the response.
func (s *Server) decodeSubmission(w http.ResponseWriter, r *http.Request) (journal.Submission, bool) {
	var sub journal.Submission

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusBadRequest, errInvalidRequest, "request body exceeds size limit")
			return sub, false
		}
		respondError(w, http.StatusBadRequest, errInvalidRequest, err.Error())
		return sub, false
	}

	result, err := submissionValidator.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequest, err.Error())
		return sub, false
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		respondError(w, http.StatusBadRequest, errInvalidRequest, strings.Join(msgs, "; "))
		return sub, false
	}

	if err := json.Unmarshal(body, &sub); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequest, err.Error())
		return sub, false
	}
	return sub, true
}

func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, journal.ErrMissingAudio):
		respondError(w, http.StatusBadRequest, errMissingAudio, "audioData is required")
	case errors.Is(err, journal.ErrInvalidFormat):
		respondError(w, http.StatusBadRequest, errInvalidFormat, "audioData must be base64 encoded WebM audio")
	case errors.Is(err, journal.ErrNotFound):
		respondError(w, http.StatusNotFound, errNotFound, err.Error())
	default:
		s.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, errInternal, err.Error())
	}
}

func newSubmissionResponse(message string, receipt *journal.Receipt) submissionResponse {
	return submissionResponse{
		Success:       true,
		Message:       message,
		Timestamp:     receipt.Timestamp,
		Metadata:      receipt.Metadata,
		Format:        audio.Format,
		Transcription: receipt.Transcription,
		JournalID:     receipt.JournalID,
	}
}
