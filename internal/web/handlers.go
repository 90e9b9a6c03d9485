package web

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/dataset"
	"github.com/JonMunkholm/csvclean/internal/pipeline"
	"github.com/JonMunkholm/csvclean/internal/quota"
	"github.com/JonMunkholm/csvclean/internal/store"
)

// multipartMemory is how much of a multipart form is held in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

// CleanResponse is the body of a successful POST /api/clean.
type CleanResponse struct {
	JobID       string            `json:"job_id"`
	Report      pipeline.Report   `json:"report"`
	UsageInfo   UsageInfoResponse `json:"usage_info"`
	DownloadCSV string            `json:"download_csv"`
}

// UsageInfoResponse is the caller's quota position. RemainingFree is only
// present for anonymous callers on a capped tier.
type UsageInfoResponse struct {
	core.UsageInfo
	RemainingFree *int `json:"remaining_free,omitempty"`
}

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	Jobs []store.CleaningJob `json:"jobs"`
}

func newUsageInfoResponse(caller core.Caller, info core.UsageInfo) UsageInfoResponse {
	resp := UsageInfoResponse{UsageInfo: info}
	if caller.Anonymous && info.Limit != quota.Unlimited {
		remaining := info.Remaining
		resp.RemainingFree = &remaining
	}
	return resp
}

// callerFrom returns the caller set by middleware.Identify. Requests that
// bypassed it are treated as anonymous with their remote address as
// identity.
func callerFrom(r *http.Request) core.Caller {
	if caller, ok := core.CallerFromContext(r.Context()); ok {
		return caller
	}
	return core.Caller{
		Identity:  "anon:" + r.RemoteAddr,
		Tier:      quota.TierAnonymous,
		Anonymous: true,
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}

// handleClean cleans one uploaded CSV.
func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)

	maxSize := s.cfg.Clean.MaxUploadBytes
	if r.ContentLength > maxSize {
		respondError(w, r, &quota.FileTooLargeError{Tier: caller.Tier, Size: r.ContentLength, Limit: maxSize})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, &quota.FileTooLargeError{Tier: caller.Tier, Size: tooLarge.Limit + 1, Limit: tooLarge.Limit})
			return
		}
		respondError(w, r, errors.Join(core.ErrNoFile, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, core.ErrNoFile)
		return
	}
	defer file.Close()

	result, err := s.service.Clean(r.Context(), caller, core.CleanRequest{
		FileName:     header.Filename,
		Size:         header.Size,
		Body:         file,
		Instructions: r.FormValue("instructions"),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := dataset.Write(&buf, result.Data); err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CleanResponse{
		JobID:       result.JobID,
		Report:      result.Report,
		UsageInfo:   newUsageInfoResponse(caller, result.Usage),
		DownloadCSV: buf.String(),
	})
}

// handleUsage returns the caller's quota position for this period.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)

	info, err := s.service.Usage(r.Context(), caller)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newUsageInfoResponse(caller, info))
}

// handleHistory returns the caller's most recent cleanings.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.service.History(r.Context(), callerFrom(r))
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, HistoryResponse{Jobs: jobs})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"cleanings": s.service.LimiterStatus(),
	})
}
