package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/username/duty-pay/internal/billing"
	"github.com/username/duty-pay/internal/calendar"
	"github.com/username/duty-pay/internal/roster"
	"github.com/username/duty-pay/internal/store/sqlite"
	"github.com/username/duty-pay/pkg/dateutil"
	"go.uber.org/zap"
)

// Handler serves the billing API. The run archive is optional.
type Handler struct {
	Engine              *billing.Engine
	Calendar            *calendar.YearCalendars
	Store               *sqlite.Store
	DefaultMunicipality string
	logger              *zap.Logger
}

// NewHandler creates a new API handler. store may be nil.
func NewHandler(engine *billing.Engine, cal *calendar.YearCalendars, store *sqlite.Store, defaultMunicipality string, logger *zap.Logger) *Handler {
	return &Handler{
		Engine:              engine,
		Calendar:            cal,
		Store:               store,
		DefaultMunicipality: defaultMunicipality,
		logger:              logger,
	}
}

// ComputeBilling prices the posted duties.
// POST /api/billing
func (h *Handler) ComputeBilling(w http.ResponseWriter, r *http.Request) {
	var req BillingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	pct, err := billing.ParseWithholding(req.WithholdingPercent)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid withholding_percent", err)
		return
	}

	duties := make([]billing.DutyRecord, 0, len(req.Duties)+len(req.Entries))
	for i, d := range req.Duties {
		rec, err := d.toRecord(h.DefaultMunicipality)
		if err != nil {
			index := i
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:     fmt.Sprintf("Invalid duty #%d", i+1),
				Details:   err.Error(),
				DutyIndex: &index,
			})
			return
		}
		duties = append(duties, rec)
	}

	skipped := 0
	if len(req.Entries) > 0 {
		if req.Year == 0 || req.Month < 1 || req.Month > 12 {
			writeError(w, http.StatusBadRequest, "year and month are required with entries", nil)
			return
		}
		fromEntries, n := roster.FromEntries(req.Year, time.Month(req.Month), h.DefaultMunicipality, req.Entries)
		duties = append(duties, fromEntries...)
		skipped = n
	}

	result, err := h.Engine.Compute(duties, pct)
	if err != nil {
		if billing.IsInputError(err) {
			resp := ErrorResponse{Error: "Billing failed", Details: err.Error()}
			var dutyErr *billing.DutyError
			if errors.As(err, &dutyErr) {
				index := dutyErr.Index
				resp.DutyIndex = &index
			}
			writeJSON(w, http.StatusBadRequest, resp)
			return
		}
		writeError(w, http.StatusInternalServerError, "Billing failed", err)
		return
	}

	resp := BillingResponse{
		Skipped:    skipped,
		TotalGross: result.TotalGross(),
		TotalNet:   result.TotalNet(),
		Result:     result,
	}

	if req.Archive {
		if h.Store == nil {
			writeError(w, http.StatusConflict, "Run archive is not configured", nil)
			return
		}
		year, month := req.Year, time.Month(req.Month)
		if year == 0 || month == 0 {
			now := time.Now()
			year, month = now.Year(), now.Month()
		}
		id, err := h.Store.SaveRun(r.Context(), sqlite.RunFromResult(year, month, result))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to archive run", err)
			return
		}
		resp.RunID = id
	}

	h.logger.Info("Billing computed via API",
		zap.Int("duties", len(duties)),
		zap.Int("skipped_entries", skipped),
		zap.String("gross", resp.TotalGross.String()),
		zap.String("run_id", resp.RunID))

	writeJSON(w, http.StatusOK, resp)
}

// ClassifyDate returns the day type of one date.
// GET /api/calendar/{date}?municipality=
func (h *Handler) ClassifyDate(w http.ResponseWriter, r *http.Request) {
	date, err := dateutil.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	municipality := strings.TrimSpace(r.URL.Query().Get("municipality"))
	if municipality == "" {
		municipality = h.DefaultMunicipality
	}

	writeJSON(w, http.StatusOK, DayDTO{
		Date:         date.String(),
		Municipality: municipality,
		DayType:      h.Calendar.Classify(date.In(time.UTC), municipality),
	})
}

// ListHolidays returns the national and local holidays of a year.
// GET /api/calendar?year=
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year := time.Now().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 2000 || n > 2100 {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = n
	}

	holidays := h.Calendar.Year(year).Holidays()
	dtos := make([]HolidayDTO, 0, len(holidays))
	for _, hol := range holidays {
		dtos = append(dtos, HolidayDTO{
			Date:         hol.Date.String(),
			Scope:        hol.Scope,
			Municipality: hol.Municipality,
			Description:  hol.Description,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetTariffs returns the loaded tariff table.
// GET /api/tariffs
func (h *Handler) GetTariffs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toTariffsDTO(h.Engine.Tariffs()))
}

// ListRuns lists archived runs.
// GET /api/runs
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusNotFound, "Run archive is not configured", nil)
		return
	}
	runs, err := h.Store.ListRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun returns one archived run.
// GET /api/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusNotFound, "Run archive is not configured", nil)
		return
	}
	run, err := h.Store.LoadRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, sqlite.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "Run not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load run", err)
		return
	}
	writeJSON(w, http.StatusOK, BillingResponse{
		RunID:      run.ID,
		TotalGross: run.Result.TotalGross(),
		TotalNet:   run.Result.TotalNet(),
		Result:     run.Result,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
