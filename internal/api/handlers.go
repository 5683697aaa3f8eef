package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/robert-malhotra/ifg-pair-selector/internal/aoi"
	"github.com/robert-malhotra/ifg-pair-selector/internal/observability"
	"github.com/robert-malhotra/ifg-pair-selector/internal/pipeline"
	"github.com/robert-malhotra/ifg-pair-selector/internal/report"
	"github.com/robert-malhotra/ifg-pair-selector/internal/stac"
	"github.com/robert-malhotra/ifg-pair-selector/internal/submit"
	"github.com/robert-malhotra/ifg-pair-selector/internal/translate"
)

// maxBodyBytes bounds AOI and selection request bodies.
const maxBodyBytes = 4 << 20

// AOIRepository is the AOI catalog as managed over HTTP.
type AOIRepository interface {
	List(ctx context.Context) ([]*aoi.AOI, error)
	Get(ctx context.Context, id string) (*aoi.AOI, error)
	Upsert(ctx context.Context, aois ...*aoi.AOI) error
	Delete(ctx context.Context, id string) error
}

// Runner executes selection runs.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Config wires the handlers.
type Config struct {
	AOIs    AOIRepository
	Runner  Runner
	Runs    *stac.RunStore[*pipeline.Result]
	Reports *report.Log
	Metrics *observability.Collector
	// BaseURL prefixes links in STAC responses.
	BaseURL string
	// Platform and Window fill selection requests that omit them.
	Platform string
	Window   time.Duration
	// CORSOrigins lists the allowed origins; empty allows any.
	CORSOrigins []string
	Logger      *slog.Logger
}

// Handlers contains the HTTP handlers for the selector API.
type Handlers struct {
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

// NewHandlers creates handlers from cfg.
func NewHandlers(cfg Config) *Handlers {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	return &Handlers{cfg: cfg, now: time.Now, logger: logger}
}

// Health reports liveness.
// GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AOIList is the body of GET /aois.
type AOIList struct {
	AOIs []*aoi.AOI `json:"aois"`
}

// ListAOIs returns the whole catalog in registration order.
// GET /aois
func (h *Handlers) ListAOIs(w http.ResponseWriter, r *http.Request) {
	aois, err := h.cfg.AOIs.List(r.Context())
	if err != nil {
		h.internalError(w, r, "failed to list aois", err)
		return
	}
	if aois == nil {
		aois = []*aoi.AOI{}
	}
	WriteJSON(w, http.StatusOK, AOIList{AOIs: aois})
}

// GetAOI returns one AOI.
// GET /aois/{aoiId}
func (h *Handlers) GetAOI(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "aoiId")
	a, err := h.cfg.AOIs.Get(r.Context(), id)
	switch {
	case errors.Is(err, aoi.ErrNotFound):
		WriteNotFound(w, "aoi not found: "+id)
	case err != nil:
		h.internalError(w, r, "failed to read aoi", err)
	default:
		WriteJSON(w, http.StatusOK, a)
	}
}

// PutAOI registers or replaces an AOI. The body id, when present, must match
// the path.
// PUT /aois/{aoiId}
func (h *Handlers) PutAOI(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "aoiId")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		WriteBadRequest(w, "failed to read request body")
		return
	}

	a, err := aoi.ParseRecordWithID(body, id)
	if err != nil {
		WriteInvalidParameter(w, err.Error())
		return
	}

	if err := h.cfg.AOIs.Upsert(r.Context(), a); err != nil {
		if errors.Is(err, aoi.ErrInvalidAOI) {
			WriteInvalidParameter(w, err.Error())
			return
		}
		h.internalError(w, r, "failed to store aoi", err)
		return
	}

	h.logger.Info("aoi registered",
		slog.String("aoi", a.ID),
		slog.Int("priority", a.Priority),
	)
	WriteJSON(w, http.StatusOK, a)
}

// DeleteAOI removes an AOI.
// DELETE /aois/{aoiId}
func (h *Handlers) DeleteAOI(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "aoiId")
	err := h.cfg.AOIs.Delete(r.Context(), id)
	switch {
	case errors.Is(err, aoi.ErrNotFound):
		WriteNotFound(w, "aoi not found: "+id)
	case err != nil:
		h.internalError(w, r, "failed to delete aoi", err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// SelectionRequest is the body of POST /selections. Every field is optional:
// the window defaults to the configured period ending now.
type SelectionRequest struct {
	// Datetime is a "start/end" interval; either side may be open. It is
	// an alternative to starttime and endtime.
	Datetime  string   `json:"datetime,omitempty"`
	StartTime string   `json:"starttime,omitempty"`
	EndTime   string   `json:"endtime,omitempty"`
	Platform  string   `json:"platform,omitempty"`
	AOIIDs    []string `json:"aoi_ids,omitempty"`
	Tracks    []int    `json:"track_numbers,omitempty"`
	Submit    bool     `json:"submit,omitempty"`
}

// FailureBody reports one failed AOI.
type FailureBody struct {
	AOIID string `json:"aoi_id"`
	Error string `json:"error"`
}

// SelectionResponse is the outcome of a run.
type SelectionResponse struct {
	ID               string               `json:"id"`
	Status           string               `json:"status"`
	Started          time.Time            `json:"started"`
	Finished         time.Time            `json:"finished"`
	AOIs             []string             `json:"aois"`
	NothingSelected  bool                 `json:"nothing_selected"`
	Skipped          []string             `json:"skipped,omitempty"`
	OwnershipDropped int                  `json:"ownership_dropped"`
	Failures         []FailureBody        `json:"failures,omitempty"`
	Pairs            *stac.ItemCollection `json:"pairs"`
	Jobs             []submit.Outcome     `json:"jobs,omitempty"`
}

// CreateSelection runs the selector synchronously and keeps the result for
// GET /selections/{runId}.
// POST /selections
func (h *Handlers) CreateSelection(w http.ResponseWriter, r *http.Request) {
	var body SelectionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		WriteBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	req, err := h.buildRequest(body)
	if err != nil {
		WriteInvalidParameter(w, err.Error())
		return
	}

	res, err := h.cfg.Runner.Run(r.Context(), req)
	if err != nil && (res == nil || res.Selection == nil) {
		if errors.Is(err, pipeline.ErrInvalidRequest) {
			WriteInvalidParameter(w, err.Error())
			return
		}
		h.internalError(w, r, "selection run failed", err)
		return
	}

	h.cfg.Runs.Put(res.ID, res)
	resp, rerr := h.selectionResponse(res)
	if rerr != nil {
		h.internalError(w, r, "failed to render selection", rerr)
		return
	}

	status := http.StatusCreated
	if err != nil {
		// pairs were selected but submission failed
		h.logger.Error("job submission failed",
			slog.String("run", res.ID),
			slog.String("error", err.Error()),
		)
		status = http.StatusBadGateway
	}
	w.Header().Set("Location", "/selections/"+res.ID)
	WriteJSON(w, status, resp)
}

// GetSelection returns a stored run.
// GET /selections/{runId}
func (h *Handlers) GetSelection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runId")
	res, err := h.cfg.Runs.Get(id)
	switch {
	case errors.Is(err, stac.ErrRunNotFound):
		WriteNotFound(w, "selection not found: "+id)
		return
	case errors.Is(err, stac.ErrRunExpired):
		WriteGone(w, "selection expired: "+id)
		return
	case err != nil:
		h.internalError(w, r, "failed to read selection", err)
		return
	}

	resp, err := h.selectionResponse(res)
	if err != nil {
		h.internalError(w, r, "failed to render selection", err)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

// GetReport streams an AOI's decision log.
// GET /reports/{aoiId}
func (h *Handlers) GetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "aoiId")
	f, err := os.Open(h.cfg.Reports.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		WriteNotFound(w, "no decision log for aoi: "+id)
		return
	}
	if err != nil {
		h.internalError(w, r, "failed to open decision log", err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.internalError(w, r, "failed to stat decision log", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.FileName(id)+`"`)
	http.ServeContent(w, r, report.FileName(id), info.ModTime(), f)
}

func (h *Handlers) buildRequest(body SelectionRequest) (pipeline.Request, error) {
	req := pipeline.Request{
		Platform: body.Platform,
		AOIIDs:   body.AOIIDs,
		Tracks:   body.Tracks,
		Submit:   body.Submit,
		Trigger:  pipeline.TriggerAPI,
	}
	if req.Platform == "" {
		req.Platform = h.cfg.Platform
	}

	var from, to *time.Time
	switch {
	case body.Datetime != "" && (body.StartTime != "" || body.EndTime != ""):
		return req, fmt.Errorf("%w: datetime cannot be combined with starttime or endtime", pipeline.ErrInvalidRequest)
	case body.Datetime != "":
		var err error
		if from, to, err = translate.ParseInterval(body.Datetime); err != nil {
			return req, err
		}
	default:
		if body.StartTime != "" {
			t, err := translate.ParseTime(body.StartTime)
			if err != nil {
				return req, err
			}
			from = &t
		}
		if body.EndTime != "" {
			t, err := translate.ParseTime(body.EndTime)
			if err != nil {
				return req, err
			}
			to = &t
		}
	}

	end := h.now().UTC()
	if to != nil {
		end = *to
	}
	start := end.Add(-h.cfg.Window)
	if from != nil {
		start = *from
	}
	req.Start, req.End = start, end
	return req, req.Validate()
}

func (h *Handlers) selectionResponse(res *pipeline.Result) (*SelectionResponse, error) {
	resp := &SelectionResponse{
		ID:              res.ID,
		Status:          res.Status(),
		Started:         res.Started,
		Finished:        res.Finished,
		AOIs:            res.AOIs,
		NothingSelected: res.NothingSelected(),
		Jobs:            res.Jobs,
	}
	if resp.AOIs == nil {
		resp.AOIs = []string{}
	}

	sel := res.Selection
	if sel == nil {
		resp.Pairs = stac.NewItemCollection(nil)
		return resp, nil
	}
	resp.Skipped = sel.Skipped
	resp.OwnershipDropped = sel.OwnershipDropped
	for _, f := range sel.Failures {
		resp.Failures = append(resp.Failures, FailureBody{AOIID: f.AOIID, Error: f.Err.Error()})
	}

	pairs, err := stac.PairCollection(sel.Pairs, res.ID, h.cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	resp.Pairs = pairs
	return resp, nil
}

func (h *Handlers) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	reqID := GetRequestID(r.Context())
	h.logger.Error(msg,
		slog.String("request_id", reqID),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	WriteInternalErrorWithRequestID(w, msg, reqID)
}
